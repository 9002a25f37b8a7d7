package presence

import "errors"

// ErrUnauthorized indicates the presence server's OAuth endpoint
// rejected a code exchange or refresh (non-2xx response).
var ErrUnauthorized = errors.New("presence: oauth endpoint rejected request")
