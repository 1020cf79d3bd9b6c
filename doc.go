// Package enettune tunes the penalty of an elastic-net linear regression by
// cross-validated grid search, in the style of a tidymodels workflow.
//
// A run splits the data into training and test sets, builds k folds over
// the training rows, fits a standardised elastic net for every penalty of a
// regular grid on every fold, picks the best penalty by a chosen metric and
// finally fits that candidate on the full training set and evaluates it once
// on the test set.
//
// # Quick Start
//
//	tbl, _ := dataset.MakeRegression(100, 3, 1.0, 18)
//	cfg := config.Default() // seed 18, 50/50 split, 10 folds, penalty 0..10 by 0.5
//	res, err := experiment.RunTable(ctx, cfg, tbl, log.Nop())
//	if err != nil {
//	    return err
//	}
//	fmt.Print(res.Report.Text())
//
// Or from the command line:
//
//	enettune synth --rows 100 --features 3 --out data.csv
//	enettune tune --data data.csv --target lat --out results
//
// # Packages
//
//   - dataset: delimited-file loading, dummy encoding, synthetic data
//   - preprocessing: StandardScaler and MinMaxScaler
//   - sklearn/linear_model: ElasticNet (coordinate descent) and LinearRegression
//   - sklearn/pipeline: scaler → elastic net workflow and its gob snapshot
//   - sklearn/model_selection: split, k-fold, grid tuning, selection, last fit
//   - metrics: rmse, rsq, rsq_trad, mae, mape, explained_variance and metric sets
//   - viz, report: plots, CSV tables, YAML report, model export
//   - experiment, config: end-to-end orchestration and its configuration
//   - core/model, core/parallel, pkg/errors, pkg/log: shared infrastructure
package enettune
