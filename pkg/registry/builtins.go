package registry

import (
	"context"
	"fmt"
	"time"
)

// Builtins returns the tools every deployment gets:
//
//	echo  returns its arguments unchanged
//	now   returns the current time, RFC 3339, in UTC
//	sleep waits for the "duration" argument (e.g. "250ms")
func Builtins() map[string]ToolFunction {
	return map[string]ToolFunction{
		"echo":  echo,
		"now":   now,
		"sleep": sleep,
	}
}

func echo(_ context.Context, args map[string]any) (any, error) {
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}
	return out, nil
}

func now(context.Context, map[string]any) (any, error) {
	return time.Now().UTC().Format(time.RFC3339), nil
}

func sleep(ctx context.Context, args map[string]any) (any, error) {
	raw, _ := args["duration"].(string)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return nil, fmt.Errorf("sleep: invalid duration %q", raw)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return raw, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
