// Copyright 2025 coral Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mf

import (
	"context"
	"io"
	"math"
	"time"

	"github.com/coral-rec/coral/base/log"
	"github.com/coral-rec/coral/dataset"
	"github.com/coral-rec/coral/floats"
	"github.com/coral-rec/coral/model"
	"github.com/coral-rec/coral/parallel"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// ALS is the alternating least squares matrix factorization model. Factors are
// updated by solving one ridge regression per user and per item each epoch:
//
//	p_u = (Q_u^T Q_u + reg * I)^-1 Q_u^T r_u
//
// For the ranking task confidence weights derived from feedback strength are
// used instead:
//
//	p_u = (Q^T Q + sum_i c_ui q_i q_i^T + reg * I)^-1 sum_i c_ui q_i
//
// Hyper-parameters:
//
//	Reg        - the regularization strength. Default is 5.0.
//	NFactors   - the number of latent factors. Default is 100.
//	NEpochs    - the number of training epochs. Default is 20.
//	Alpha      - the confidence multiplier for the ranking task. Default is 10.
//	InitMean   - the mean of initial latent factors. Default is 0.
//	InitStdDev - the standard deviation of initial latent factors. Default is 0.05.
//	Task       - the training task, "rating" or "ranking". Default is "rating".
type ALS struct {
	BaseMatrixFactorization
	// hyper-parameters
	reg        float64
	nFactors   int
	nEpochs    int
	alpha      float64
	initMean   float64
	initStdDev float64
	task       model.TaskType
	minRating  float64
	maxRating  float64
}

// NewALS creates an ALS model.
func NewALS(params model.Params) *ALS {
	als := new(ALS)
	als.SetParams(params)
	return als
}

// SetParams sets hyper-parameters of the ALS model.
func (als *ALS) SetParams(params model.Params) {
	als.BaseModel.SetParams(params)
	als.reg = als.Params.GetFloat64(model.Reg, 5.0)
	als.nFactors = als.Params.GetInt(model.NFactors, 100)
	als.nEpochs = als.Params.GetInt(model.NEpochs, 20)
	als.alpha = als.Params.GetFloat64(model.Alpha, 10)
	als.initMean = als.Params.GetFloat64(model.InitMean, 0)
	als.initStdDev = als.Params.GetFloat64(model.InitStdDev, 0.05)
	als.task = model.TaskType(als.Params.GetString(model.Task, string(model.TaskRating)))
	als.minRating = als.Params.GetFloat64(model.MinRating, 1)
	als.maxRating = als.Params.GetFloat64(model.MaxRating, 5)
}

func (als *ALS) GetParamsGrid(withSize bool) model.ParamsGrid {
	return model.ParamsGrid{
		model.NFactors: lo.If(withSize, []interface{}{8, 16, 32, 64}).Else([]interface{}{16}),
		model.NEpochs:  []interface{}{10, 20, 50},
		model.Reg:      []interface{}{0.01, 0.1, 1, 5, 10},
		model.Alpha:    []interface{}{1, 10, 100},
	}
}

func (als *ALS) Clear() {
	als.BaseMatrixFactorization.Clear()
}

func (als *ALS) Invalid() bool {
	return als == nil || als.BaseMatrixFactorization.Invalid()
}

// Init factor matrices with truncated normal noise.
func (als *ALS) Init(trainSet *dataset.Dataset) {
	als.ResetRandomGenerator()
	rng := als.GetRandomGenerator()
	als.UserFactor = mat.NewDense(int(trainSet.CountUsers()), als.nFactors,
		rng.TruncatedNormalVector64(int(trainSet.CountUsers())*als.nFactors, als.initMean, als.initStdDev))
	als.ItemFactor = mat.NewDense(int(trainSet.CountItems()), als.nFactors,
		rng.TruncatedNormalVector64(int(trainSet.CountItems())*als.nFactors, als.initMean, als.initStdDev))
	als.BaseMatrixFactorization.Init(trainSet)
}

func (als *ALS) validate(trainSet *dataset.Dataset) error {
	if trainSet == nil || trainSet.CountUsers() == 0 || trainSet.CountItems() == 0 {
		return errors.NotValidf("empty train set")
	}
	if als.nFactors <= 0 {
		return errors.NotValidf("n_factors = %v", als.nFactors)
	}
	if als.nEpochs <= 0 {
		return errors.NotValidf("n_epochs = %v", als.nEpochs)
	}
	if als.reg <= 0 {
		return errors.NotValidf("reg = %v", als.reg)
	}
	if als.task != model.TaskRating && als.task != model.TaskRanking {
		return errors.NotValidf("task = %v", als.task)
	}
	return nil
}

// Fit the ALS model. Within an epoch all user factors are solved first, then
// all item factors against the just updated user factors. Solves inside one
// sweep are independent and run in parallel.
func (als *ALS) Fit(ctx context.Context, trainSet, testSet *dataset.Dataset, config *FitConfig) (Score, error) {
	config = config.LoadDefaultIfNil()
	if err := als.validate(trainSet); err != nil {
		return Score{}, errors.Trace(err)
	}
	log.Logger().Info("fit als",
		zap.Int("train_set_size", int(trainSet.CountFeedback())),
		zap.String("params", als.Params.ToString()),
		zap.Int("jobs", config.Jobs))
	als.Init(trainSet)
	// a non-positive Verbose disables per-epoch diagnostics entirely
	if config.Verbose > 0 {
		evalStart := time.Now()
		score := als.evaluate(trainSet)
		evalTime := time.Since(evalStart)
		logFitProgress("als", 0, als.nEpochs,
			zap.String("eval_time", evalTime.String()),
			zap.Float32(als.scoreName(), score))
	}

	// per-worker solver buffers
	solvers := make([]*ridgeSolver, config.Jobs)
	for i := range solvers {
		solvers[i] = newRidgeSolver(als.nFactors)
	}

	for epoch := 1; epoch <= als.nEpochs; epoch++ {
		fitStart := time.Now()
		var err error
		switch als.task {
		case model.TaskRating:
			err = als.fitEpochExplicit(ctx, trainSet, solvers, config.Jobs)
		case model.TaskRanking:
			err = als.fitEpochImplicit(ctx, trainSet, solvers, config.Jobs)
		}
		if err != nil {
			return Score{}, errors.Trace(err)
		}
		fitTime := time.Since(fitStart)
		// evaluate
		if config.Verbose > 0 && (epoch%config.Verbose == 0 || epoch == als.nEpochs) {
			evalStart := time.Now()
			score := als.evaluate(trainSet)
			evalTime := time.Since(evalStart)
			fields := []zap.Field{
				zap.String("fit_time", fitTime.String()),
				zap.String("eval_time", evalTime.String()),
				zap.Float32("train_"+als.scoreName(), score),
			}
			if testSet != nil && testSet.CountFeedback() > 0 {
				fields = append(fields, zap.Float32("test_"+als.scoreName(), als.evaluate(testSet)))
			}
			logFitProgress("als", epoch, als.nEpochs, fields...)
			if config.OnEpoch != nil {
				config.OnEpoch(epoch, score)
			}
		}
	}

	final := Score{}
	evalSet := trainSet
	if testSet != nil && testSet.CountFeedback() > 0 {
		evalSet = testSet
	}
	switch als.task {
	case model.TaskRating:
		final.RMSE = model.RMSE(als, evalSet)
	case model.TaskRanking:
		final.Accuracy = model.Accuracy(als, evalSet)
	}
	return final, nil
}

// fitEpochExplicit runs one explicit feedback epoch. Each user factor solves
//
//	(Q_u^T Q_u + reg * I) p_u = Q_u^T r_u
//
// over the items the user rated, then item factors mirror the update over the
// users that rated the item.
func (als *ALS) fitEpochExplicit(ctx context.Context, trainSet *dataset.Dataset, solvers []*ridgeSolver, jobs int) error {
	// user sweep
	err := parallel.Parallel(ctx, int(trainSet.CountUsers()), jobs, func(workerId, userIndex int) error {
		feedback := trainSet.GetUserFeedback()[userIndex]
		if len(feedback) == 0 {
			return nil
		}
		labels := trainSet.GetUserLabels()[userIndex]
		solver := solvers[workerId]
		solver.reset()
		for position, itemIndex := range feedback {
			factor := als.ItemFactor.RawRowView(int(itemIndex))
			solver.accumulate(factor, 1, labels[position])
		}
		x, err := solver.solve(als.reg)
		if err != nil {
			return errors.Trace(err)
		}
		als.UserFactor.SetRow(userIndex, x)
		return nil
	})
	if err != nil {
		return errors.Trace(err)
	}
	// item sweep
	return parallel.Parallel(ctx, int(trainSet.CountItems()), jobs, func(workerId, itemIndex int) error {
		feedback := trainSet.GetItemFeedback()[itemIndex]
		if len(feedback) == 0 {
			return nil
		}
		labels := trainSet.GetItemLabels()[itemIndex]
		solver := solvers[workerId]
		solver.reset()
		for position, userIndex := range feedback {
			factor := als.UserFactor.RawRowView(int(userIndex))
			solver.accumulate(factor, 1, labels[position])
		}
		x, err := solver.solve(als.reg)
		if err != nil {
			return errors.Trace(err)
		}
		als.ItemFactor.SetRow(itemIndex, x)
		return nil
	})
}

// fitEpochImplicit runs one confidence weighted epoch. The dense Gram matrix
// Q^T Q is shared by every user in the sweep, so it is computed once before
// the sweep and each solve only adds the confidence terms of the observed
// entries:
//
//	(Q^T Q + sum_i c_ui q_i q_i^T + reg * I) p_u = sum_i c_ui q_i
//
// where c_ui = alpha * r_ui.
func (als *ALS) fitEpochImplicit(ctx context.Context, trainSet *dataset.Dataset, solvers []*ridgeSolver, jobs int) error {
	// user sweep
	var gram mat.Dense
	gram.Mul(als.ItemFactor.T(), als.ItemFactor)
	err := parallel.Parallel(ctx, int(trainSet.CountUsers()), jobs, func(workerId, userIndex int) error {
		feedback := trainSet.GetUserFeedback()[userIndex]
		if len(feedback) == 0 {
			return nil
		}
		labels := trainSet.GetUserLabels()[userIndex]
		solver := solvers[workerId]
		solver.resetTo(&gram)
		for position, itemIndex := range feedback {
			factor := als.ItemFactor.RawRowView(int(itemIndex))
			confidence := als.alpha * labels[position]
			solver.accumulate(factor, confidence, confidence)
		}
		x, err := solver.solve(als.reg)
		if err != nil {
			return errors.Trace(err)
		}
		als.UserFactor.SetRow(userIndex, x)
		return nil
	})
	if err != nil {
		return errors.Trace(err)
	}
	// item sweep
	gram.Mul(als.UserFactor.T(), als.UserFactor)
	return parallel.Parallel(ctx, int(trainSet.CountItems()), jobs, func(workerId, itemIndex int) error {
		feedback := trainSet.GetItemFeedback()[itemIndex]
		if len(feedback) == 0 {
			return nil
		}
		labels := trainSet.GetItemLabels()[itemIndex]
		solver := solvers[workerId]
		solver.resetTo(&gram)
		for position, userIndex := range feedback {
			factor := als.UserFactor.RawRowView(int(userIndex))
			confidence := als.alpha * labels[position]
			solver.accumulate(factor, confidence, confidence)
		}
		x, err := solver.solve(als.reg)
		if err != nil {
			return errors.Trace(err)
		}
		als.ItemFactor.SetRow(itemIndex, x)
		return nil
	})
}

func (als *ALS) evaluate(data *dataset.Dataset) float32 {
	switch als.task {
	case model.TaskRanking:
		return model.Accuracy(als, data)
	default:
		return model.RMSE(als, data)
	}
}

func (als *ALS) scoreName() string {
	if als.task == model.TaskRanking {
		return "accuracy"
	}
	return "rmse"
}

// Predict the score of an item by a user. Unknown users or items fall back to
// the global mean of training labels.
func (als *ALS) Predict(userId, itemId string) float32 {
	userIndex := als.UserIndex.Id(userId)
	itemIndex := als.ItemIndex.Id(itemId)
	if userIndex == dataset.NotId {
		log.Logger().Warn("unknown user", zap.String("user_id", userId))
	}
	if itemIndex == dataset.NotId {
		log.Logger().Warn("unknown item", zap.String("item_id", itemId))
	}
	return float32(als.PredictIndex(userIndex, itemIndex))
}

// PredictIndex predicts by internal indices. For the rating task the dot
// product is clipped into the rating range, for the ranking task the sigmoid
// of the dot product is thresholded at 0.5 into a 0/1 label.
func (als *ALS) PredictIndex(userIndex, itemIndex int32) float64 {
	if !als.inBounds(userIndex, itemIndex) {
		return als.GlobalMean
	}
	dot := als.internalPredict(userIndex, itemIndex)
	switch als.task {
	case model.TaskRanking:
		if sigmoid(dot) >= 0.5 {
			return 1
		}
		return 0
	default:
		return clip(dot, als.minRating, als.maxRating)
	}
}

// Probability returns the preference probability for the ranking task.
func (als *ALS) Probability(userIndex, itemIndex int32) float64 {
	if !als.inBounds(userIndex, itemIndex) {
		return als.GlobalMean
	}
	return sigmoid(als.internalPredict(userIndex, itemIndex))
}

func (als *ALS) Marshal(w io.Writer) error {
	return als.BaseMatrixFactorization.Marshal(w)
}

func (als *ALS) Unmarshal(r io.Reader) error {
	if err := als.BaseMatrixFactorization.Unmarshal(r); err != nil {
		return errors.Trace(err)
	}
	als.SetParams(als.Params)
	return nil
}

// ridgeSolver holds the per-worker buffers of one normal equation
// (A + reg * I) x = b and solves it by Cholesky decomposition.
type ridgeSolver struct {
	k int
	a []float64 // A, k x k row major
	b []float64
	x *mat.VecDense
}

func newRidgeSolver(k int) *ridgeSolver {
	return &ridgeSolver{
		k: k,
		a: make([]float64, k*k),
		b: make([]float64, k),
		x: mat.NewVecDense(k, nil),
	}
}

func (solver *ridgeSolver) reset() {
	floats.Zero(solver.a)
	floats.Zero(solver.b)
}

// resetTo starts A from a precomputed Gram matrix instead of zero.
func (solver *ridgeSolver) resetTo(gram *mat.Dense) {
	copy(solver.a, gram.RawMatrix().Data)
	floats.Zero(solver.b)
}

// accumulate adds weight * v v^T to A and label * v to b.
func (solver *ridgeSolver) accumulate(v []float64, weight, label float64) {
	for i := 0; i < solver.k; i++ {
		floats.MulConstAddTo(v, weight*v[i], solver.a[i*solver.k:(i+1)*solver.k])
	}
	floats.MulConstAddTo(v, label, solver.b)
}

func (solver *ridgeSolver) solve(reg float64) ([]float64, error) {
	for i := 0; i < solver.k; i++ {
		solver.a[i*solver.k+i] += reg
	}
	var chol mat.Cholesky
	if !chol.Factorize(mat.NewSymDense(solver.k, solver.a)) {
		return nil, errors.New("normal equation is not positive definite")
	}
	if err := chol.SolveVecTo(solver.x, mat.NewVecDense(solver.k, solver.b)); err != nil {
		return nil, errors.Trace(err)
	}
	x := solver.x.RawVector().Data
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.New("non-finite factor solution")
		}
	}
	return x, nil
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func clip(x, low, high float64) float64 {
	return math.Min(math.Max(x, low), high)
}
