// Package log defines standard attribute keys for tuning runs.
//
// Keys follow a hierarchical naming convention ("data.samples",
// "tune.fold") so the JSON output can be filtered by prefix.
package log

// Model and Operation Context
const (
	// ModelNameKey identifies the estimator type.
	// Examples: "ElasticNet", "StandardScaler", "Workflow"
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "transform", "tune", "select", "last_fit"
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is logging.
	ComponentKey = "ml.component"

	// PhaseKey indicates the lifecycle phase.
	// Examples: "training", "validation", "testing"
	PhaseKey = "ml.phase"

	// RunIDKey carries the UUID of one end-to-end run.
	RunIDKey = "run.id"
)

// Data Shape
const (
	// SamplesKey indicates the number of rows.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of predictor columns after encoding.
	FeaturesKey = "data.features"

	// TargetKey names the outcome column.
	TargetKey = "data.target"

	// PathKey is the input or output file path.
	PathKey = "data.path"
)

// Performance and Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// IterationKey records the iteration count of an iterative solver.
	IterationKey = "training.iteration"

	// MetricKey names the metric being reported.
	MetricKey = "metrics.name"

	// MetricValueKey is the value of MetricKey.
	MetricValueKey = "metrics.value"

	// R2ScoreKey records R² for regression.
	R2ScoreKey = "metrics.r2_score"
)

// Tuning
const (
	// CandidateKey is the penalty value of the candidate being evaluated.
	CandidateKey = "tune.candidate"

	// FoldKey identifies the resample ("Fold01", "Repeat1/Fold03").
	FoldKey = "tune.fold"

	// CyclesKey is the number of fit/score cycles in a tuning run.
	CyclesKey = "tune.cycles"

	// GridSizeKey is the number of candidates in the grid.
	GridSizeKey = "tune.grid_size"

	// WorkersKey is the size of the tuning task pool.
	WorkersKey = "tune.workers"
)

// Hyperparameters and Configuration
const (
	// RegularizationKey records the penalty (regularisation strength).
	RegularizationKey = "hyperparams.regularization"

	// MixtureKey records the L1/L2 mixture.
	MixtureKey = "hyperparams.mixture"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"
)

// Error Context
const (
	// ErrorCodeKey provides a structured error code for programmatic handling.
	ErrorCodeKey = "error.code"

	// ErrorTypeKey categorizes the type of error encountered.
	ErrorTypeKey = "error.type"
)

// Standard attribute values.
const (
	OperationFit          = "fit"
	OperationPredict      = "predict"
	OperationTransform    = "transform"
	OperationFitTransform = "fit_transform"
	OperationScore        = "score"
	OperationLoad         = "load"
	OperationSplit        = "split"
	OperationTune         = "tune"
	OperationSelect       = "select"
	OperationLastFit      = "last_fit"

	PhaseTraining   = "training"
	PhaseValidation = "validation"
	PhaseTesting    = "testing"

	ErrorNotFitted         = "NOT_FITTED"
	ErrorDimensionMismatch = "DIMENSION_MISMATCH"
	ErrorEmptyData         = "EMPTY_DATA"
	ErrorInvalidInput      = "INVALID_INPUT"
	ErrorConvergence       = "CONVERGENCE_FAILURE"
)
