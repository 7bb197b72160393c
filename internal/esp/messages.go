package esp

// Message returns a short user-facing explanation of err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	switch KindOf(err) {
	case KindForbidden:
		return "The API key is invalid."
	case KindTimeout:
		return "The API call timed out."
	case KindNoInternet:
		return "No internet access."
	case KindTooManyRequests:
		return "The daily API allowance has been used up."
	case KindWorkerPanic:
		return "The status check crashed."
	default:
		return "An error occurred."
	}
}
