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
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/coral-rec/coral/base/log"
	"github.com/coral-rec/coral/dataset"
	"github.com/coral-rec/coral/model"
	"github.com/coral-rec/coral/model/mf"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCommand = &cobra.Command{
	Use:   "coral",
	Short: "Collaborative filtering by alternating least squares.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		debug, _ := cmd.Root().PersistentFlags().GetBool("debug")
		log.SetLogger(cmd.Root().PersistentFlags(), debug)
	},
}

var fitCommand = &cobra.Command{
	Use:   "fit DATA_FILE",
	Short: "Fit an ALS model from a csv file of (user, item, label) rows.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		sep, _ := cmd.Flags().GetString("sep")
		header, _ := cmd.Flags().GetBool("header")
		trainSet, err := dataset.LoadDataFromCSV(args[0], sep, header)
		if err != nil {
			log.Logger().Fatal("failed to load train set", zap.Error(err))
		}
		var testSet *dataset.Dataset
		if testPath, _ := cmd.Flags().GetString("test"); testPath != "" {
			if testSet, err = dataset.LoadDataFromCSV(testPath, sep, header); err != nil {
				log.Logger().Fatal("failed to load test set", zap.Error(err))
			}
		}
		taskName, _ := cmd.Flags().GetString("task")
		task, err := model.ParseTask(taskName)
		if err != nil {
			log.Logger().Fatal("failed to parse task", zap.Error(err))
		}
		nFactors, _ := cmd.Flags().GetInt("factors")
		nEpochs, _ := cmd.Flags().GetInt("epochs")
		reg, _ := cmd.Flags().GetFloat64("reg")
		alpha, _ := cmd.Flags().GetFloat64("alpha")
		seed, _ := cmd.Flags().GetInt64("seed")
		jobs, _ := cmd.Flags().GetInt("jobs")
		verbose, _ := cmd.Flags().GetInt("verbose")
		als := mf.NewALS(model.Params{
			model.NFactors:    nFactors,
			model.NEpochs:     nEpochs,
			model.Reg:         reg,
			model.Alpha:       alpha,
			model.RandomState: seed,
			model.Task:        string(task),
		})
		score, err := als.Fit(context.Background(), trainSet, testSet,
			mf.NewFitConfig().SetJobs(jobs).SetVerbose(verbose))
		if err != nil {
			log.Logger().Fatal("failed to fit model", zap.Error(err))
		}
		switch task {
		case model.TaskRating:
			log.Logger().Info("fit complete", zap.Float32("rmse", score.RMSE))
		case model.TaskRanking:
			log.Logger().Info("fit complete", zap.Float32("accuracy", score.Accuracy))
		}
		output, _ := cmd.Flags().GetString("output")
		file, err := os.Create(output)
		if err != nil {
			log.Logger().Fatal("failed to create model file", zap.Error(err))
		}
		defer file.Close()
		if err = mf.MarshalModel(file, als); err != nil {
			log.Logger().Fatal("failed to save model", zap.Error(err))
		}
		log.Logger().Info("model saved", zap.String("path", output))
	},
}

var recommendCommand = &cobra.Command{
	Use:   "recommend USER_ID",
	Short: "Recommend top items for a user from a saved model.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		modelPath, _ := cmd.Flags().GetString("model")
		file, err := os.Open(modelPath)
		if err != nil {
			log.Logger().Fatal("failed to open model file", zap.Error(err))
		}
		defer file.Close()
		m, err := mf.UnmarshalModel(file)
		if err != nil {
			log.Logger().Fatal("failed to load model", zap.Error(err))
		}
		n, _ := cmd.Flags().GetInt("n")
		random, _ := cmd.Flags().GetBool("random")
		recommendations, err := m.Recommend(args[0], n, random)
		if err != nil {
			log.Logger().Fatal("failed to recommend", zap.Error(err))
		}
		for _, recommendation := range recommendations {
			fmt.Printf("%s\t%.4f\n", recommendation.ItemId, recommendation.Score)
		}
	},
}

func init() {
	log.AddFlags(rootCommand.PersistentFlags())
	rootCommand.PersistentFlags().Bool("debug", false, "use debug log mode")
	fitCommand.Flags().String("sep", ",", "column separator of the csv file")
	fitCommand.Flags().Bool("header", false, "skip the first line of the csv file")
	fitCommand.Flags().String("test", "", "path of the test csv file")
	fitCommand.Flags().String("task", "rating", "training task (rating or ranking)")
	fitCommand.Flags().Int("factors", 100, "number of latent factors")
	fitCommand.Flags().Int("epochs", 20, "number of training epochs")
	fitCommand.Flags().Float64("reg", 5.0, "regularization strength")
	fitCommand.Flags().Float64("alpha", 10.0, "confidence multiplier for the ranking task")
	fitCommand.Flags().Int64("seed", 0, "random seed")
	fitCommand.Flags().Int("jobs", 1, "number of parallel jobs")
	fitCommand.Flags().Int("verbose", 5, "report every n epochs")
	fitCommand.Flags().StringP("output", "o", "coral_model.bin", "path of the model file")
	recommendCommand.Flags().StringP("model", "m", "coral_model.bin", "path of the model file")
	recommendCommand.Flags().IntP("n", "n", 10, "number of recommended items")
	recommendCommand.Flags().Bool("random", false, "sample recommendations weighted by score")
	rootCommand.AddCommand(fitCommand, recommendCommand)
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		log.Logger().Fatal("failed to execute", zap.Error(err))
	}
}
