package database

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/google/uuid"
	"github.com/neo/quizrush_backend/internal/types"
)

// CreateQuestion inserts a question with its options and category tags.
// Validity of CorrectOptionID is the caller's responsibility; the
// repository stores what it is given.
func (d *Database) CreateQuestion(q *Question, categories []string) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	if q.ID == "" {
		q.ID = uuid.New().String()
	}

	_, err = tx.Exec(`INSERT INTO questions (id, prompt, correct_option_id, explanation, learning_tip, difficulty)
		VALUES (?, ?, ?, ?, ?, ?)`,
		q.ID, q.Prompt, q.CorrectOptionID, q.Explanation, q.LearningTip, q.Difficulty.String())
	if err != nil {
		return fmt.Errorf("failed to insert question: %v", err)
	}

	for i, opt := range q.Options {
		if opt.ID == "" {
			opt.ID = uuid.New().String()
			q.Options[i] = opt
		}
		_, err := tx.Exec("INSERT INTO options (id, question_id, label, position) VALUES (?, ?, ?, ?)",
			opt.ID, q.ID, opt.Text, i)
		if err != nil {
			return fmt.Errorf("failed to insert option: %v", err)
		}
	}

	for _, name := range categories {
		var categoryID string
		err := tx.QueryRow("SELECT id FROM categories WHERE name = ?", name).Scan(&categoryID)
		if err != nil {
			categoryID = uuid.New().String()
			if _, err := tx.Exec("INSERT INTO categories (id, name) VALUES (?, ?)", categoryID, name); err != nil {
				return fmt.Errorf("failed to insert category %s: %v", name, err)
			}
		}
		_, err = tx.Exec("INSERT INTO question_categories (question_id, category_id) VALUES (?, ?)",
			q.ID, categoryID)
		if err != nil {
			return fmt.Errorf("failed to tag question with %s: %v", name, err)
		}
	}

	return tx.Commit()
}

// FetchQuestionBatch returns up to count questions of the given tier,
// optionally restricted to the given category tags. Ordering of the
// underlying pool is stable (creation time then id); when the pool exceeds
// count, the batch is a contiguous window at a uniformly random offset.
// An empty result means no question matched; callers treat that as a setup
// failure.
func (d *Database) FetchQuestionBatch(tier types.Difficulty, categoryTags []string, count int) ([]Question, error) {
	baseWhere := "q.difficulty = ?"
	args := []interface{}{tier.String()}

	if len(categoryTags) > 0 {
		placeholders := strings.Repeat("?,", len(categoryTags))
		placeholders = placeholders[:len(placeholders)-1]
		baseWhere += ` AND q.id IN (
			SELECT qc.question_id FROM question_categories qc
			JOIN categories c ON c.id = qc.category_id
			WHERE c.name IN (` + placeholders + `))`
		for _, tag := range categoryTags {
			args = append(args, tag)
		}
	}

	var poolSize int
	err := d.db.QueryRow("SELECT COUNT(*) FROM questions q WHERE "+baseWhere, args...).Scan(&poolSize)
	if err != nil {
		return nil, fmt.Errorf("failed to count question pool: %v", err)
	}
	if poolSize == 0 {
		return nil, nil
	}

	offset := 0
	limit := poolSize
	if count > 0 && poolSize > count {
		offset = rand.Intn(poolSize - count + 1)
		limit = count
	}

	query := `SELECT q.id, q.prompt, q.correct_option_id, q.explanation, q.learning_tip, q.difficulty, q.created_at
		FROM questions q WHERE ` + baseWhere + `
		ORDER BY q.created_at, q.id LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query questions: %v", err)
	}
	defer rows.Close()

	var questions []Question
	for rows.Next() {
		var q Question
		var difficulty string
		err := rows.Scan(&q.ID, &q.Prompt, &q.CorrectOptionID, &q.Explanation, &q.LearningTip, &difficulty, &q.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan question: %v", err)
		}
		q.Difficulty = types.Difficulty(difficulty)
		questions = append(questions, q)
	}

	for i := range questions {
		if err := d.loadOptions(&questions[i]); err != nil {
			return nil, err
		}
	}

	return questions, nil
}

func (d *Database) loadOptions(q *Question) error {
	rows, err := d.db.Query("SELECT id, label FROM options WHERE question_id = ? ORDER BY position", q.ID)
	if err != nil {
		return fmt.Errorf("failed to query options: %v", err)
	}
	defer rows.Close()

	for rows.Next() {
		var opt Option
		if err := rows.Scan(&opt.ID, &opt.Text); err != nil {
			return fmt.Errorf("failed to scan option: %v", err)
		}
		q.Options = append(q.Options, opt)
	}
	return nil
}
