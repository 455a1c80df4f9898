package callback

import (
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"time"

	"github.com/karurochori/simkernel/model"
)

// defaultHTTPTimeout bounds the built-in callback's GET request. The
// reference implementation's cpr::Get call has no timeout; an unbounded
// hang in a callback would stall the worker goroutine running the task
// indefinitely, so this port adds a short, fixed ceiling rather than
// reproducing that hazard.
const defaultHTTPTimeout = 10 * time.Second

// BuiltinConfig configures the built-in HTTP/shell callback. Both Url and
// Script are optional and independent: if both are set, both fire, and a
// failure in one does not suppress the other — grounded on
// basic-callback.h's operator(), which runs the GET and the std::system
// call unconditionally of each other's outcome.
type BuiltinConfig struct {
	Url    string `json:"url,omitempty"`
	Script string `json:"script,omitempty"`
}

// Builtin constructs the built-in callback from its configuration.
func Builtin(cfg BuiltinConfig) Callback {
	client := &http.Client{Timeout: defaultHTTPTimeout}

	return func(ctx context.Context, _ model.StepContext) error {
		var urlErr, scriptErr error

		if cfg.Url != "" {
			urlErr = doGet(ctx, client, cfg.Url)
		}

		if cfg.Script != "" {
			scriptErr = runScript(ctx, cfg.Script)
		}

		if urlErr != nil {
			return urlErr
		}
		return scriptErr
	}
}

func doGet(ctx context.Context, client *http.Client, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("callback: build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("callback: GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	return nil
}

func runScript(ctx context.Context, script string) error {
	cmd := exec.CommandContext(ctx, "sh", "-c", script)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("callback: script %q: %w", script, err)
	}
	return nil
}
