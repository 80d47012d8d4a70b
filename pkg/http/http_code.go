package http

// Code pairs a numeric response code with its default message.
type Code struct {
	Code int
	Msg  string
}

func failed(code int, msg string) Code {
	return Code{Code: code, Msg: msg}
}

func success(code int, msg string) Code {
	return Code{Code: code, Msg: msg}
}

var (
	Failed                        = failed(500, "Request failed")
	InternalError                 = failed(5000, "Internal error, please contact the administrator")
	RequestParameterParsingFailed = failed(5001, "Request parameter parsing failed")

	BadRequest = failed(4000, "Bad request")
	NotFound   = failed(4004, "Not found")

	Unauthorized         = failed(4401, "Unauthorized")
	AuthenticationFailed = failed(4402, "Authentication failed")
	InvalidToken         = failed(4405, "Invalid token")
	TokenExpired         = failed(4407, "Token is expired")

	Forbidden        = failed(4030, "Forbidden")
	PermissionDenied = failed(4031, "Permission denied")

	UserNotKnown      = failed(4441, "User is not known in the Hub")
	UserAlreadyExists = failed(4442, "User already exists")
	OrgNotOnboarded   = failed(4443, "Organisation is not onboarded")

	InvalidStateParameter    = failed(4502, "Invalid state parameter")
	TokenExchangeFailed      = failed(4503, "Token exchange failed")
	AccessDenied             = failed(4504, "Access was denied at the consent page")
	InvitationNotFound       = failed(4505, "Invitation not found or already used")
	InvitationExpired        = failed(4506, "Invitation has expired")
	OrcidAlreadyLinked       = failed(4507, "ORCID iD is already linked to another account")
	OrgCredentialsInvalid    = failed(4508, "Organisation ORCID client credentials are invalid")
	InvitationAlreadySent    = failed(4509, "Invitation has already been sent")
	MissingAuthorizationCode = failed(4510, "Authorization code is missing")
)

var (
	Success = success(200, "Request Success")
)
