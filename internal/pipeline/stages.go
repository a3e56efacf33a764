package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/docpub/internal/generator"
	"git.home.luguber.info/inful/docpub/internal/gitops"
	"git.home.luguber.info/inful/docpub/internal/retry"
	"git.home.luguber.info/inful/docpub/internal/toolchain"
	"git.home.luguber.info/inful/docpub/internal/verify"
)

// DefaultStages returns the full publish pipeline in execution order.
func DefaultStages() []StageDef {
	return []StageDef{
		{Name: StageCheckout, Fn: stageCheckout},
		{Name: StageProvision, Fn: stageProvision},
		{Name: StageInstall, Fn: stageInstall},
		{Name: StageGenerate, Fn: stageGenerate},
		{Name: StageVerify, Fn: stageVerify},
		{Name: StagePublish, Fn: stagePublish},
	}
}

// stageCheckout clones the repository with full history and records the
// source commit the run builds from.
func stageCheckout(ctx context.Context, state *RunState) error {
	client := gitops.NewClient(state.WorkDir)
	path, err := client.CloneRepository(ctx, state.Config.Repository)
	if err != nil {
		return err
	}
	state.CheckoutPath = path

	commit, err := gitops.HeadCommit(path)
	if err != nil {
		return err
	}
	state.SourceCommit = commit
	return nil
}

// stageProvision verifies the pinned runtime is available.
func stageProvision(ctx context.Context, state *RunState) error {
	prov := toolchain.NewProvisioner(state.Config.Toolchain, state.CheckoutPath)
	if _, err := prov.Provision(ctx); err != nil {
		return err
	}
	state.ToolchainEnv = state.Config.Toolchain.ExtraEnv
	return nil
}

// stageInstall installs the package and its documentation dependencies.
func stageInstall(ctx context.Context, state *RunState) error {
	prov := toolchain.NewProvisioner(state.Config.Toolchain, state.CheckoutPath)
	return prov.Install(ctx)
}

// stageGenerate runs the documentation generator against the configured
// source and output directories.
func stageGenerate(ctx context.Context, state *RunState) error {
	gen := generator.New(state.Config.Generator, state.CheckoutPath, state.ToolchainEnv)
	return gen.Build(ctx)
}

// stageVerify preflights the markdown sources and checks internal links in
// the rendered output. Problems fail the run only in strict mode.
func stageVerify(ctx context.Context, state *RunState) error {
	if !state.Config.Verify.Enabled {
		return ErrStageSkipped
	}
	svc := verify.NewService(state.Config.Verify)

	sourceDir := filepath.Join(state.CheckoutPath, state.Config.Generator.SourceDir)
	preflight, err := svc.PreflightSources(sourceDir)
	if err != nil {
		return err
	}

	outputDir := filepath.Join(state.CheckoutPath, state.Config.Generator.OutputDir)
	output, err := svc.CheckOutput(outputDir)
	if err != nil {
		return err
	}

	if svc.Strict() {
		if total := len(preflight.Problems) + len(output.Problems); total > 0 {
			return fmt.Errorf("verification failed with %d broken links", total)
		}
	}
	return nil
}

// stagePublish switches to the publishing branch, replaces the target
// directory with the fresh output, commits and pushes.
func stagePublish(ctx context.Context, state *RunState) error {
	client := gitops.NewClient(state.WorkDir).WithRecorder(state.Recorder)
	if n := state.Config.Publish.PushRetries; n > 0 {
		client = client.WithRetryPolicy(retry.NewPolicy(retry.BackoffLinear, time.Second, 30*time.Second, n))
	}
	pub := gitops.NewPublisher(client)
	result, err := pub.Publish(ctx, gitops.PublishRequest{
		CheckoutPath: state.CheckoutPath,
		OutputPath:   filepath.Join(state.CheckoutPath, state.Config.Generator.OutputDir),
		SourceCommit: state.SourceCommit,
		Publish:      state.Config.Publish,
		Auth:         state.Config.Repository.Auth,
	})
	if err != nil {
		return err
	}
	state.PublishResult = result
	return nil
}
