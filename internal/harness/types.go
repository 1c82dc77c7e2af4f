package harness

// TraceEvent is one dispatch as recorded in the history store.
type TraceEvent struct {
	Seq     int64  `json:"seq"`
	Channel string `json:"channel"`
	Status  string `json:"status"`
	Value   string `json:"value"`
	Command string `json:"command"`
	Builtin bool   `json:"builtin,omitempty"`

	// ExitCode is set for launched commands.
	ExitCode *int `json:"exit_code,omitempty"`
}

// ChannelState is a channel's state at the end of a scenario.
type ChannelState struct {
	Name      string `json:"name"`
	Index     int    `json:"index"`
	State     string `json:"state"`
	Connected bool   `json:"connected"`
	Value     string `json:"value"`
	Updates   int    `json:"updates"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true if every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace contains all dispatches in seq order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Channels is the final state of each registered channel.
	Channels []ChannelState `json:"channels"`

	// Quit reports whether the built-in quit was dispatched; ExitCode is
	// its code. Events after the quit are not delivered.
	Quit     bool `json:"quit"`
	ExitCode int  `json:"exit_code"`

	// Delivered counts the events processed before the session ended.
	Delivered int `json:"delivered"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Trace:    []TraceEvent{},
		Errors:   []string{},
		Channels: []ChannelState{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// channel returns the final states of every channel named name.
func (r *Result) channel(name string) []ChannelState {
	var out []ChannelState
	for _, ch := range r.Channels {
		if ch.Name == name {
			out = append(out, ch)
		}
	}
	return out
}
