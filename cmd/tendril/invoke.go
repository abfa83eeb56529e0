package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/invoker"
	"github.com/google/uuid"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var invokeCmd = &cobra.Command{
	Use:   "invoke URL",
	Short: "Drive a function until it completes",
	Long: `Invokes the function at URL the way the orchestration engine does: retry-with-state
payloads are sent back as request.previous and transient signals are retried with
backoff, until the function succeeds or fails.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		request, err := readRequest(cmd)
		if err != nil {
			return err
		}

		ic := invocationFromFlags(cmd)
		if ic.ActivityID == "" {
			ic.ActivityID = uuid.NewString()
		}

		maxCont, _ := cmd.Flags().GetInt("max-continuations")
		maxTransient, _ := cmd.Flags().GetInt("max-transient")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		inv := invoker.New(args[0],
			invoker.WithLogger(logger),
			invoker.WithMaxContinuations(maxCont),
			invoker.WithMaxTransient(maxTransient),
			invoker.WithTimeout(timeout),
		)

		out, runErr := inv.Run(cmd.Context(), request, ic)
		if out.Invocations > 0 {
			if err := printOutcome(cmd.OutOrStdout(), ic.ActivityID, out); err != nil {
				return err
			}
		}
		if runErr != nil {
			return runErr
		}
		if out.Result.Kind == domain.KindFailed {
			return fmt.Errorf("step failed: %s", out.Result.Message)
		}
		return nil
	},
}

func readRequest(cmd *cobra.Command) (domain.Object, error) {
	raw, _ := cmd.Flags().GetString("data")
	if file, _ := cmd.Flags().GetString("data-file"); file != "" {
		var (
			b   []byte
			err error
		)
		if file == "-" {
			b, err = io.ReadAll(cmd.InOrStdin())
		} else {
			b, err = os.ReadFile(file)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read request: %w", err)
		}
		raw = string(b)
	}

	var request domain.Object
	if err := json.Unmarshal([]byte(raw), &request); err != nil {
		return nil, fmt.Errorf("request must be a JSON object: %w", err)
	}
	return request, nil
}

func invocationFromFlags(cmd *cobra.Command) domain.InvocationContext {
	get := func(name string) string {
		v, _ := cmd.Flags().GetString(name)
		return v
	}
	return domain.InvocationContext{
		ActivityID:      get("activity-id"),
		OrganizationID:  get("organization-id"),
		ProjectID:       get("project-id"),
		EnvironmentID:   get("environment-id"),
		EnvironmentName: get("environment-name"),
		WorkflowToken:   get("workflow-token"),
		EngineEndpoint:  get("engine-endpoint"),
		LogUploadPath:   get("log-upload-path"),
		StateStoreURL:   get("state-store-url"),
		StateStoreToken: get("state-store-token"),
	}
}

type outcomeView struct {
	ActivityID    string `json:"activityID"`
	Outcome       string `json:"outcome"`
	Invocations   int    `json:"invocations"`
	Continuations int    `json:"continuations"`
	Transients    int    `json:"transients"`
	Message       string `json:"message,omitempty"`
	Data          any    `json:"data,omitempty"`
	StackTrace    string `json:"stackTrace,omitempty"`
}

// printOutcome writes the outcome as JSON. A terminal gets a colored headline
// and an indented document; anything else gets one compact line.
func printOutcome(w io.Writer, activityID string, out invoker.Outcome) error {
	view := outcomeView{
		ActivityID:    activityID,
		Outcome:       out.Result.Kind.String(),
		Invocations:   out.Invocations,
		Continuations: out.Continuations,
		Transients:    out.Transients,
		Message:       out.Result.Message,
		StackTrace:    out.Result.Stack,
	}
	switch out.Result.Kind {
	case domain.KindSuccess:
		view.Data = out.Result.Data
	case domain.KindRetryWithState:
		view.Data = out.Result.State
	}

	enc := json.NewEncoder(w)
	if isTerminal(w) {
		if _, err := fmt.Fprintln(w, headline(view)); err != nil {
			return err
		}
		enc.SetIndent("", "  ")
	}
	return enc.Encode(view)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func headline(view outcomeView) termenv.Style {
	p := termenv.ColorProfile()
	color := "#4ade80"
	switch view.Outcome {
	case domain.KindFailed.String():
		color = "#f87171"
	case domain.KindRetryWithState.String(), domain.KindTransient.String():
		color = "#facc15"
	}
	text := fmt.Sprintf("%s after %d invocation(s), %d continuation(s), %d transient",
		view.Outcome, view.Invocations, view.Continuations, view.Transients)
	return termenv.String(text).Foreground(p.Color(color)).Bold()
}

func init() {
	rootCmd.AddCommand(invokeCmd)
	f := invokeCmd.Flags()
	f.StringP("data", "d", "{}", "Request body (JSON object)")
	f.String("data-file", "", "Read the request body from a file (- for stdin)")
	f.String("activity-id", "", "Activity id (generated when empty)")
	f.String("organization-id", "", "Organization id")
	f.String("project-id", "", "Project id")
	f.String("environment-id", "", "Environment id")
	f.String("environment-name", "", "Environment name")
	f.String("workflow-token", "", "Token sent with log uploads")
	f.String("engine-endpoint", "", "Base URL receiving log uploads")
	f.String("log-upload-path", "", "Path of the log upload under the engine endpoint")
	f.String("state-store-url", "", "State store the function should use")
	f.String("state-store-token", "", "Token for the state store")
	f.Int("max-continuations", invoker.DefaultMaxContinuations, "Stop after this many retry-with-state re-invocations")
	f.Int("max-transient", invoker.DefaultMaxTransient, "Stop after this many transient re-invocations")
	f.Duration("timeout", time.Minute, "Timeout of a single invocation")
}
