package matching

import "errors"

// ErrEngineBusy is returned when Run is called while another batch is in
// flight on the same engine.
var ErrEngineBusy = errors.New("matching engine is already running a batch")
