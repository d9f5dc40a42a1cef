package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "quizrush",
	Short: "QuizRush - real-time multiplayer quiz backend",
	Long: `QuizRush is the game orchestration backend for a real-time multiplayer
quiz platform: duels, fastest-finger races, group lobbies, time attack,
and practice, with bot opponents and Elo ratings.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is .env)")
}
