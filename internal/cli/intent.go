package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	twerrors "github.com/taskwire/taskwire/internal/errors"
	"github.com/taskwire/taskwire/internal/intent"
)

// MaxInputSize caps intent request payloads at 10 MiB. Larger requests are
// rejected with an INPUT_TOO_LARGE envelope before any JSON decoding.
const MaxInputSize = 10 << 20

// newIntentCmd creates the intent command, the primary protocol surface:
// one JSON request in, one JSON envelope out.
func newIntentCmd(flags *GlobalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "intent [request]",
		Short: "Execute one JSON intent request",
		Long: `Execute one JSON intent request and print the response envelope.

The request is taken from the positional argument, or from stdin when the
argument is "-" or absent with piped input. Without any input, a help
envelope listing the available intents is printed.

The response is exactly one JSON line on stdout. The exit code is 0 when
the request succeeded and 1 when the envelope reports a failure, so shell
scripts can branch without parsing JSON.

Examples:
  taskwire intent '{"intent":"create","title":"Ship the importer"}'
  echo '{"intent":"done","task":"TASK-001","path":"0"}' | taskwire intent
  taskwire intent < request.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIntent(cmd, flags, args)
		},
		SilenceUsage: true,
	}

	return cmd
}

// AddIntentCommand adds the intent command to the root command.
func AddIntentCommand(rootCmd *cobra.Command, flags *GlobalFlags) {
	rootCmd.AddCommand(newIntentCmd(flags))
}

// runIntent reads the request, executes it, and prints the envelope.
// Failures that already produced an envelope return ErrJSONErrorOutput so
// the process exits non-zero without printing the error twice.
func runIntent(cmd *cobra.Command, flags *GlobalFlags, args []string) error {
	payload, err := readPayload(cmd, args)
	if err != nil {
		if errors.Is(err, twerrors.ErrInputTooLarge) {
			return printFailure(cmd, &intent.ErrorDetail{
				Code:        intent.CodeInputTooLarge,
				Message:     twerrors.UserMessage(twerrors.ErrInputTooLarge),
				Recoverable: true,
			})
		}
		return twerrors.Wrap(err, "failed to read request")
	}

	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return printEnvelope(cmd, helpEnvelope())
	}

	var req intent.Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return printFailure(cmd, &intent.ErrorDetail{
			Code:        intent.CodeInvalidJSON,
			Message:     "request is not valid JSON: " + err.Error(),
			Recoverable: true,
		})
	}

	ctx, eng, err := setupEngine(cmd.Context(), flags)
	if err != nil {
		return err
	}

	resp := eng.Process(ctx, req)
	if err := printEnvelope(cmd, resp); err != nil {
		return err
	}
	if !resp.Success {
		cmd.SilenceErrors = true
		return twerrors.ErrJSONErrorOutput
	}
	return nil
}

// readPayload resolves the request bytes: the positional argument, or stdin
// when the argument is "-" or absent with piped input. Returns nil bytes
// when there is no input at all.
func readPayload(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) > 0 && args[0] != "-" {
		if len(args[0]) > MaxInputSize {
			return nil, twerrors.ErrInputTooLarge
		}
		return []byte(args[0]), nil
	}

	in := cmd.InOrStdin()

	// A bare "taskwire intent" on an interactive terminal means no input;
	// an explicit "-" always reads stdin.
	if len(args) == 0 && stdinIsTerminal(in) {
		return nil, nil
	}

	data, err := io.ReadAll(io.LimitReader(in, MaxInputSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxInputSize {
		return nil, twerrors.ErrInputTooLarge
	}
	return data, nil
}

// stdinIsTerminal reports whether the command's input is an interactive
// terminal. Non-file readers (tests, pipes wrapped by cobra) never are.
func stdinIsTerminal(in io.Reader) bool {
	f, ok := in.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// helpEnvelope is printed when the intent command runs without input: the
// available verbs plus copy-paste examples, as a success envelope so agents
// probing the CLI can parse it like any other response.
func helpEnvelope() *intent.Response {
	return &intent.Response{
		Success: true,
		Intent:  "help",
		Result: map[string]any{
			"message":           "Send one JSON intent request as the argument or on stdin.",
			"available_intents": intent.AvailableIntents(),
			"examples": []any{
				map[string]any{"intent": "context", "include_all": true},
				map[string]any{"intent": "create", "title": "Ship the importer"},
				map[string]any{"intent": "done", "task": "TASK-001", "path": "0"},
			},
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// printEnvelope writes one envelope as a single JSON line on stdout.
func printEnvelope(cmd *cobra.Command, resp *intent.Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return twerrors.Wrap(err, "failed to encode response")
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}

// printFailure prints a failure envelope for an error caught before the
// engine ran, then signals a non-zero exit without duplicate printing.
func printFailure(cmd *cobra.Command, detail *intent.ErrorDetail) error {
	resp := &intent.Response{
		Success:   false,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Error:     detail,
	}
	if err := printEnvelope(cmd, resp); err != nil {
		return err
	}
	cmd.SilenceErrors = true
	return twerrors.ErrJSONErrorOutput
}
