package i18n

func init() {
	Register("en-US", map[string]string{
		"UNKNOWN":           "an unexpected error occurred",
		"VALIDATION":        "the request is missing or has malformed fields",
		"DUPLICATE_NAME":    "a team named {{.name}} already exists",
		"DUPLICATE_REQUEST": "a pending request for this team already exists",
		"LIMIT_EXCEEDED":    "you have reached the request limit for this team",
		"CAPACITY_EXCEEDED": "the team is already full",
		"STATE_CONFLICT":    "the operation is not allowed in the current state",
		"PERMISSION_DENIED": "you do not have permission to perform this action",
		"NOT_FOUND":         "the requested record was not found",
		"TRANSIENT":         "the service is briefly busy, please try again",
	})
}
