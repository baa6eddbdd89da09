package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/KOMKZ/go-yogan-admission/di"
	"github.com/KOMKZ/go-yogan-admission/flagx"
	"github.com/spf13/cobra"
)

type checkFlags struct {
	Policy string        `flag:"policy,p" usage:"configured policy id" required:"true"`
	Key    string        `flag:"key,k" usage:"request key" default:"127.0.0.1"`
	Count  int           `flag:"count,n" usage:"number of decisions" default:"1"`
	Every  time.Duration `flag:"every" usage:"pause between decisions"`
}

func newCheckCmd(root *rootFlags) *cobra.Command {
	flags := &checkFlags{}
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run admission decisions against a configured policy",
		Example: "  admission-gateway check --policy api --key 10.0.0.1 -n 5\n" +
			"  admission-gateway check -p login -k alice -n 3 --every 500ms",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := flagx.ParseFlags(cmd, flags); err != nil {
				return err
			}
			return runCheck(cmd, root, flags)
		},
	}
	if err := flagx.BindFlags(cmd, flags); err != nil {
		panic(err)
	}
	return cmd
}

func runCheck(cmd *cobra.Command, root *rootFlags, flags *checkFlags) error {
	app := di.NewDoApplication(
		di.WithName("admission-check"),
		di.WithVersion(version),
		di.WithConfigPath(root.ConfigDir),
		di.WithEnvPrefix(root.EnvPrefix),
	)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = app.Shutdown(ctx)
	}()
	if err := app.Setup(); err != nil {
		return err
	}

	// configuration keys are lower-cased by the loader
	policyID := strings.ToLower(flags.Policy)
	policy, ok := app.AdmissionConfig().Policy(policyID)
	if !ok {
		return fmt.Errorf("policy %q is not configured", flags.Policy)
	}
	l, err := app.Factory().GetOrCreate(policyID, policy)
	if err != nil {
		return err
	}

	ctx := app.Context()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "policy=%s strategy=%s backend=%s limit=%d window=%s\n",
		policyID, policy.Strategy, policy.Backend, policy.LimitFor(flags.Key), policy.WindowSize)

	for i := 1; i <= flags.Count; i++ {
		allowed, err := l.Allow(ctx, flags.Key)
		if err != nil {
			return err
		}
		count, err := l.CurrentCount(ctx, flags.Key)
		if err != nil {
			return err
		}
		retry, err := l.RetryAfterSeconds(ctx, flags.Key)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "#%d allowed=%t count=%d retry_after=%ds\n", i, allowed, count, retry)

		if flags.Every > 0 && i < flags.Count {
			time.Sleep(flags.Every)
		}
	}
	return nil
}
