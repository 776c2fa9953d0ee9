package trigger

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/truefoundry/idlefleet/pkg/backend"
	"github.com/truefoundry/idlefleet/pkg/capacity"
	"github.com/truefoundry/idlefleet/pkg/config"
	"github.com/truefoundry/idlefleet/pkg/logger"
	"github.com/truefoundry/idlefleet/pkg/triggerclient"
	"github.com/truefoundry/idlefleet/pkg/values"
)

// Main sends a single action, either to a remote switcher or to a controller
// built in-process from the environment
func Main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "trigger: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	flags := flag.NewFlagSet("trigger", flag.ContinueOnError)
	remote := flags.String("remote", "", "URL of a running switcher, e.g. http://localhost:8014. Runs in-process when empty.")
	timeout := flags.Duration("timeout", values.DefaultRequestTimeout, "Deadline for the whole invocation")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		return fmt.Errorf("usage: trigger [-remote URL] [-timeout 30s] <%s|%s>", values.ActionScaleUp, values.ActionScaleDown)
	}
	action := flags.Arg(0)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var result capacity.Result
	var err error
	if *remote != "" {
		result, err = triggerclient.New(*remote, *timeout).Invoke(ctx, action)
	} else {
		result, err = invokeLocal(ctx, action)
	}
	if err != nil {
		return err
	}

	return json.NewEncoder(out).Encode(result)
}

func invokeLocal(ctx context.Context, action string) (capacity.Result, error) {
	env, err := config.Load()
	if err != nil {
		return capacity.Result{}, fmt.Errorf("failed to load config: %w", err)
	}
	zapLogger, err := logger.NewLogger(env.Env, false)
	if err != nil {
		return capacity.Result{}, fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() {
		_ = zapLogger.Sync()
	}()

	controller, err := backend.NewController(ctx, zapLogger, env)
	if err != nil {
		return capacity.Result{}, err
	}
	return controller.Handle(ctx, capacity.Request{values.ActionKey: action})
}
