package common

// Names of the cookies (and JSON body fields) carrying the session tokens.
const (
	AccessTokenCookieName  = "accessToken"
	RefreshTokenCookieName = "refreshToken"
)

// AuthorizationHeaderName carries "Bearer <access token>" for clients that
// do not use cookies.
const AuthorizationHeaderName = "Authorization"
