package repositories

import (
	"context"

	"github.com/escrow-storefront/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ReviewRepo stores product reviews and buyer questions.
type ReviewRepo struct {
	pool *pgxpool.Pool
}

func NewReviewRepo(pool *pgxpool.Pool) *ReviewRepo {
	return &ReviewRepo{pool: pool}
}

const reviewColumns = `id, store_id, product_id, user_id, reviewer_name, rating, comment, created_at, updated_at`

func scanReview(row pgx.Row) (*models.Review, error) {
	var rv models.Review
	err := row.Scan(&rv.ID, &rv.StoreID, &rv.ProductID, &rv.UserID, &rv.ReviewerName, &rv.Rating, &rv.Comment, &rv.CreatedAt, &rv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &rv, nil
}

func (r *ReviewRepo) CreateReview(ctx context.Context, rv *models.Review) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO product_reviews (store_id, product_id, user_id, reviewer_name, rating, comment)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`, rv.StoreID, rv.ProductID, rv.UserID, rv.ReviewerName, rv.Rating, rv.Comment).Scan(&rv.ID, &rv.CreatedAt, &rv.UpdatedAt)
}

func (r *ReviewRepo) GetReview(ctx context.Context, id uuid.UUID) (*models.Review, error) {
	rv, err := scanReview(r.pool.QueryRow(ctx, `SELECT `+reviewColumns+` FROM product_reviews WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "review")
	}
	return rv, nil
}

// UpdateReview changes rating and comment of a review owned by rv.UserID.
func (r *ReviewRepo) UpdateReview(ctx context.Context, rv *models.Review) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE product_reviews SET rating = $3, comment = $4, updated_at = now()
		WHERE id = $1 AND user_id = $2
	`, rv.ID, rv.UserID, rv.Rating, rv.Comment)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound(pgx.ErrNoRows, "review")
	}
	return nil
}

func (r *ReviewRepo) DeleteReview(ctx context.Context, id, userID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM product_reviews WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound(pgx.ErrNoRows, "review")
	}
	return nil
}

func (r *ReviewRepo) ListReviews(ctx context.Context, storeID, productID uuid.UUID, limit, offset int) ([]models.Review, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+reviewColumns+` FROM product_reviews
		WHERE store_id = $1 AND product_id = $2
		ORDER BY created_at DESC LIMIT $3 OFFSET $4
	`, storeID, productID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Review{}
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rv)
	}
	return out, rows.Err()
}

// --- Questions ---

const questionColumns = `id, store_id, product_id, user_id, asker_name, question, answer, answered_by, answered_at, created_at`

func scanQuestion(row pgx.Row) (*models.Question, error) {
	var q models.Question
	err := row.Scan(&q.ID, &q.StoreID, &q.ProductID, &q.UserID, &q.AskerName, &q.Question, &q.Answer, &q.AnsweredBy, &q.AnsweredAt, &q.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *ReviewRepo) CreateQuestion(ctx context.Context, q *models.Question) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO product_questions (store_id, product_id, user_id, asker_name, question)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, q.StoreID, q.ProductID, q.UserID, q.AskerName, q.Question).Scan(&q.ID, &q.CreatedAt)
}

func (r *ReviewRepo) GetQuestion(ctx context.Context, id uuid.UUID) (*models.Question, error) {
	q, err := scanQuestion(r.pool.QueryRow(ctx, `SELECT `+questionColumns+` FROM product_questions WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "question")
	}
	return q, nil
}

func (r *ReviewRepo) AnswerQuestion(ctx context.Context, id, answeredBy uuid.UUID, answer string) (*models.Question, error) {
	q, err := scanQuestion(r.pool.QueryRow(ctx, `
		UPDATE product_questions SET answer = $2, answered_by = $3, answered_at = now()
		WHERE id = $1
		RETURNING `+questionColumns, id, answer, answeredBy))
	if err != nil {
		return nil, notFound(err, "question")
	}
	return q, nil
}

func (r *ReviewRepo) DeleteQuestion(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM product_questions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound(pgx.ErrNoRows, "question")
	}
	return nil
}

func (r *ReviewRepo) ListQuestions(ctx context.Context, storeID, productID uuid.UUID, limit, offset int) ([]models.Question, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+questionColumns+` FROM product_questions
		WHERE store_id = $1 AND product_id = $2
		ORDER BY created_at DESC LIMIT $3 OFFSET $4
	`, storeID, productID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *q)
	}
	return out, rows.Err()
}
