package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/neo/quizrush_backend/internal/database"
	"github.com/neo/quizrush_backend/internal/types"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert sample users and questions for local development",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil {
			fmt.Printf("Warning: Error loading .env file: %v\n", err)
		}

		db, err := database.New("data")
		if err != nil {
			return fmt.Errorf("failed to initialize database: %v", err)
		}
		defer db.Close()

		if err := db.RunMigrations("internal/database/migrations"); err != nil {
			return fmt.Errorf("migration failed: %v", err)
		}

		users := []database.User{
			{ID: uuid.New().String(), Username: "alice", Rating: 1200},
			{ID: uuid.New().String(), Username: "bob", Rating: 1350},
			{ID: uuid.New().String(), Username: "carol", Rating: 1650},
		}
		for i := range users {
			if err := db.CreateUser(&users[i]); err != nil {
				return fmt.Errorf("failed to seed user %s: %v", users[i].Username, err)
			}
			fmt.Printf("user %s  id=%s  rating=%d\n", users[i].Username, users[i].ID, users[i].Rating)
		}

		for _, q := range sampleQuestions() {
			question := q.question
			if err := db.CreateQuestion(&question, q.categories); err != nil {
				return fmt.Errorf("failed to seed question %q: %v", question.Prompt, err)
			}
		}
		fmt.Printf("seeded %d questions\n", len(sampleQuestions()))
		return nil
	},
}

type seedQuestion struct {
	question   database.Question
	categories []string
}

func sampleQuestions() []seedQuestion {
	mk := func(prompt string, difficulty types.Difficulty, correct string, wrong []string, explanation, tip string, categories ...string) seedQuestion {
		options := []database.Option{{ID: uuid.New().String(), Text: correct}}
		for _, w := range wrong {
			options = append(options, database.Option{ID: uuid.New().String(), Text: w})
		}
		return seedQuestion{
			question: database.Question{
				ID:              uuid.New().String(),
				Prompt:          prompt,
				Options:         options,
				CorrectOptionID: options[0].ID,
				Explanation:     explanation,
				LearningTip:     tip,
				Difficulty:      difficulty,
			},
			categories: categories,
		}
	}

	return []seedQuestion{
		mk("What is the capital of France?", types.DifficultyEasy, "Paris",
			[]string{"Lyon", "Marseille", "Nice"},
			"Paris has been the French capital since the 10th century.",
			"Most European capitals are also their country's largest city.",
			"geography"),
		mk("Which planet is closest to the Sun?", types.DifficultyEasy, "Mercury",
			[]string{"Venus", "Mars", "Earth"},
			"Mercury orbits at about 58 million km from the Sun.",
			"Order the planets outward: Mercury, Venus, Earth, Mars.",
			"science"),
		mk("What year did the Berlin Wall fall?", types.DifficultyMedium, "1989",
			[]string{"1987", "1991", "1993"},
			"The wall fell on 9 November 1989.",
			"The Soviet Union itself dissolved two years later.",
			"history"),
		mk("Which data structure gives O(1) average lookup by key?", types.DifficultyMedium, "Hash table",
			[]string{"Linked list", "Binary search tree", "Stack"},
			"Hash tables bucket keys by a hash of the key.",
			"Trees give O(log n); lists give O(n).",
			"technology"),
		mk("Who proved the incompleteness theorems?", types.DifficultyHard, "Kurt Gödel",
			[]string{"David Hilbert", "Alan Turing", "Bertrand Russell"},
			"Gödel published both theorems in 1931.",
			"Hilbert posed the program the theorems undermined.",
			"science", "history"),
	}
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
