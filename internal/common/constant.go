package common

// SessionCookieName is the HTTP cookie used to carry the opaque session
// token on inbound requests.
const SessionCookieName = "docgate_session"
