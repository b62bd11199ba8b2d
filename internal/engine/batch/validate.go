package batch

import "fmt"

// Validate checks the request before anything executes and returns
// every problem found. Non-object items are not rejected here; they
// fail individually during the run so one bad item cannot veto the
// rest.
func Validate(req Request) []string {
	var msgs []string

	if req.ToolName == "" {
		msgs = append(msgs, "tool_name is required")
	}
	if len(req.Items) == 0 || len(req.Items) > MaxItems {
		msgs = append(msgs, fmt.Sprintf("batch must contain between 1 and %d items", MaxItems))
	}

	opts := req.Options
	if opts == nil {
		return msgs
	}
	if opts.Concurrency != 0 && (opts.Concurrency < MinConcurrency || opts.Concurrency > MaxConcurrency) {
		msgs = append(msgs, fmt.Sprintf("options.concurrency must be between %d and %d", MinConcurrency, MaxConcurrency))
	}
	if opts.OnError != "" && opts.OnError != OnErrorContinue && opts.OnError != OnErrorStop {
		msgs = append(msgs, fmt.Sprintf("options.on_error must be %q or %q", OnErrorContinue, OnErrorStop))
	}
	if opts.ResultMode != "" && opts.ResultMode != ModeSummary && opts.ResultMode != ModeDetail {
		msgs = append(msgs, fmt.Sprintf("options.result_mode must be %q or %q", ModeSummary, ModeDetail))
	}
	if opts.MaxRetries < 0 || opts.MaxRetries > MaxRetries {
		msgs = append(msgs, fmt.Sprintf("options.max_retries must be between 0 and %d", MaxRetries))
	}
	return msgs
}

// normalized returns a copy of opts with defaults applied.
func normalized(opts *Options) Options {
	out := Options{
		Concurrency: DefaultConcurrency,
		OnError:     OnErrorContinue,
		ResultMode:  ModeSummary,
	}
	if opts == nil {
		return out
	}
	if opts.Concurrency != 0 {
		out.Concurrency = opts.Concurrency
	}
	if opts.OnError != "" {
		out.OnError = opts.OnError
	}
	if opts.ResultMode != "" {
		out.ResultMode = opts.ResultMode
	}
	out.SelectFields = opts.SelectFields
	out.MaxRetries = opts.MaxRetries
	return out
}
