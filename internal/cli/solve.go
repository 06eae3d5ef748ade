package cli

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/katalvlaran/lvot/config"
	"github.com/katalvlaran/lvot/matrix"
	"github.com/katalvlaran/lvot/output"
	"github.com/katalvlaran/lvot/solver"
)

type solveOptions struct {
	n, m, dims int
	family     string
	alpha      float64
	rank       int
	epsilon    float64
	seed       int64
	configPath string
}

func (c *CLI) solveCommand() *cobra.Command {
	var opts solveOptions

	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Solve a transport problem between two synthetic point clouds",
		Long: `Solve draws a source cloud and a shifted target cloud from a seeded
Gaussian, runs the configured solver and prints cost, convergence and
marginal checks. Flags override values read from --config.`,
		Example: `  lvot solve --n 500 --m 400 --rank 10
  lvot solve --family fused --alpha 0.3 -c lvot.toml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runSolve(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.n, "n", 200, "number of source points")
	f.IntVar(&opts.m, "m", 200, "number of target points")
	f.IntVar(&opts.dims, "dims", 3, "dimension of the point clouds")
	f.StringVar(&opts.family, "family", "linear", "solver family: linear, quadratic or fused")
	f.Float64Var(&opts.alpha, "alpha", 0.5, "fused interpolation weight in (0, 1)")
	f.IntVar(&opts.rank, "rank", -1, "factor rank, -1 for full rank")
	f.Float64Var(&opts.epsilon, "epsilon", 0, "entropic regularisation, 0 for the default")
	f.Int64Var(&opts.seed, "seed", 1, "random seed of the synthetic clouds")
	f.StringVarP(&opts.configPath, "config", "c", "", "TOML or YAML configuration file")

	return cmd
}

func (c *CLI) runSolve(cmd *cobra.Command, opts solveOptions) error {
	if opts.n <= 0 || opts.m <= 0 || opts.dims <= 0 {
		return fmt.Errorf("--n, --m and --dims must be positive (got %d, %d, %d)", opts.n, opts.m, opts.dims)
	}

	file := config.Default()
	if opts.configPath != "" {
		var err error
		if file, err = config.Load(opts.configPath); err != nil {
			return err
		}
	}
	flags := cmd.Flags()
	if flags.Changed("family") {
		file.Solver.Family = opts.family
	}
	if flags.Changed("rank") {
		file.Solver.Rank = opts.rank
	}
	if flags.Changed("epsilon") {
		file.Solver.Epsilon = opts.epsilon
	}
	if flags.Changed("alpha") {
		file.Gromov.Alpha = opts.alpha
	}

	family, err := file.Family()
	if err != nil {
		return err
	}
	solverOpts, err := file.Options()
	if err != nil {
		return err
	}

	runID := uuid.New().String()
	logger := c.Logger.With("run", runID[:8])
	sv, err := solver.New(family, append(solverOpts, solver.WithLogger(logger))...)
	if err != nil {
		return err
	}
	problem, err := syntheticProblem(family, opts.n, opts.m, opts.dims, opts.seed, file.Gromov.Alpha)
	if err != nil {
		return err
	}

	if err := cmd.Context().Err(); err != nil {
		return err
	}
	logger.Debug("solving", "family", family, "rank", sv.Rank(), "n", opts.n, "m", opts.m, "seed", opts.seed)
	prog := newProgress(logger)
	out, err := sv.Solve(problem)
	if err != nil {
		return err
	}
	elapsed := prog.done("Solved")

	return writeReport(cmd.OutOrStdout(), runID, sv, out, elapsed)
}

func writeReport(w io.Writer, runID string, sv solver.Solver, out output.Output, elapsed time.Duration) error {
	n, m := out.Shape()
	plan := out.TransportMatrix()
	rows, cols := matrix.RowSums(plan), matrix.ColSums(plan)
	r := report{
		runID:      runID,
		family:     sv.Family().String(),
		rank:       sv.Config().Rank().String(),
		n:          n,
		m:          m,
		cost:       out.Cost(),
		converged:  out.Converged(),
		iterations: out.Iterations(),
		mass:       matrix.VecSum(rows),
		marginalA:  l1Gap(rows, out.A()),
		marginalB:  l1Gap(cols, out.B()),
		elapsed:    elapsed,
	}
	_, err := io.WriteString(w, r.render())

	return err
}

// l1Gap returns Σ|v_i − w_i|.
func l1Gap(v, w []float64) float64 {
	var s float64
	for i, x := range v {
		s += math.Abs(x - w[i])
	}

	return s
}
