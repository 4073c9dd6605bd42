package pdr

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *Store) CreatePDR(ctx context.Context, p *PDR) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO pdrs (user_id, fy_label, fy_start_date, fy_end_date, status, current_step)
    VALUES ($1,$2,$3,$4,$5,$6)
    RETURNING id
  `, p.UserID, p.FYLabel, p.FYStartDate, p.FYEndDate, p.Status, p.CurrentStep).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return "", ErrPDRExists
		}
		return "", err
	}
	return id, nil
}

func (s *Store) GetPDR(ctx context.Context, pdrID string) (*PDR, error) {
	var p PDR
	var status string
	err := s.DB.QueryRow(ctx, `
    SELECT id, user_id, fy_label, fy_start_date, fy_end_date, status, current_step,
           is_locked, locked_at, locked_by, meeting_booked, meeting_booked_at,
           submitted_at, calibrated_at, calibrated_by, created_at, updated_at
    FROM pdrs
    WHERE id = $1
  `, pdrID).Scan(&p.ID, &p.UserID, &p.FYLabel, &p.FYStartDate, &p.FYEndDate, &status, &p.CurrentStep,
		&p.IsLocked, &p.LockedAt, &p.LockedBy, &p.MeetingBooked, &p.MeetingBookedAt,
		&p.SubmittedAt, &p.CalibratedAt, &p.CalibratedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	p.Status = Status(status)

	if err := s.loadGoals(ctx, &p); err != nil {
		return nil, err
	}
	if err := s.loadBehaviors(ctx, &p); err != nil {
		return nil, err
	}
	if err := s.loadReviews(ctx, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) loadGoals(ctx context.Context, p *PDR) error {
	rows, err := s.DB.Query(ctx, `
    SELECT id, pdr_id, title, description, target_outcome, success_criteria, priority,
           sort_order, employee_progress, employee_rating, ceo_rating, ceo_comments,
           created_at, updated_at
    FROM goals
    WHERE pdr_id = $1
    ORDER BY sort_order, created_at
  `, p.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var g Goal
		var priority string
		if err := rows.Scan(&g.ID, &g.PDRID, &g.Title, &g.Description, &g.TargetOutcome, &g.SuccessCriteria, &priority,
			&g.SortOrder, &g.EmployeeProgress, &g.EmployeeRating, &g.CEORating, &g.CEOComments,
			&g.CreatedAt, &g.UpdatedAt); err != nil {
			return err
		}
		g.Priority = Priority(priority)
		p.Goals = append(p.Goals, g)
	}
	return rows.Err()
}

func (s *Store) loadBehaviors(ctx context.Context, p *PDR) error {
	rows, err := s.DB.Query(ctx, `
    SELECT b.id, b.pdr_id, b.company_value_id, cv.name, b.description, b.examples, b.sort_order,
           b.employee_rating, b.ceo_rating, b.ceo_adjusted_initiative, b.ceo_comments,
           b.created_at, b.updated_at
    FROM behaviors b
    JOIN company_values cv ON b.company_value_id = cv.id
    WHERE b.pdr_id = $1
    ORDER BY b.sort_order, b.created_at
  `, p.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var b Behavior
		if err := rows.Scan(&b.ID, &b.PDRID, &b.CompanyValueID, &b.CompanyValueName, &b.Description, &b.Examples, &b.SortOrder,
			&b.EmployeeRating, &b.CEORating, &b.CEOAdjustedInitiative, &b.CEOComments,
			&b.CreatedAt, &b.UpdatedAt); err != nil {
			return err
		}
		p.Behaviors = append(p.Behaviors, b)
	}
	return rows.Err()
}

func (s *Store) loadReviews(ctx context.Context, p *PDR) error {
	var mid MidYearReview
	err := s.DB.QueryRow(ctx, `
    SELECT id, pdr_id, progress_summary, employee_comments, ceo_feedback, ceo_rating, submitted_at
    FROM mid_year_reviews
    WHERE pdr_id = $1
  `, p.ID).Scan(&mid.ID, &mid.PDRID, &mid.ProgressSummary, &mid.EmployeeComments, &mid.CEOFeedback, &mid.CEORating, &mid.SubmittedAt)
	if err == nil {
		p.MidYear = &mid
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	var end EndYearReview
	err = s.DB.QueryRow(ctx, `
    SELECT id, pdr_id, achievements, employee_comments, ceo_feedback, ceo_rating, submitted_at
    FROM end_year_reviews
    WHERE pdr_id = $1
  `, p.ID).Scan(&end.ID, &end.PDRID, &end.Achievements, &end.EmployeeComments, &end.CEOFeedback, &end.CEORating, &end.SubmittedAt)
	if err == nil {
		p.EndYear = &end
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	return nil
}

func (s *Store) listPDRs(ctx context.Context, query string, args ...any) ([]PDR, error) {
	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PDR
	for rows.Next() {
		var p PDR
		var status string
		if err := rows.Scan(&p.ID, &p.UserID, &p.FYLabel, &p.FYStartDate, &p.FYEndDate, &status, &p.CurrentStep,
			&p.IsLocked, &p.MeetingBooked, &p.SubmittedAt, &p.CalibratedAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.Status = Status(status)
		out = append(out, p)
	}
	return out, rows.Err()
}

const pdrListColumns = `
    SELECT id, user_id, fy_label, fy_start_date, fy_end_date, status, current_step,
           is_locked, meeting_booked, submitted_at, calibrated_at, created_at, updated_at
    FROM pdrs
`

func (s *Store) ListPDRs(ctx context.Context) ([]PDR, error) {
	return s.listPDRs(ctx, pdrListColumns+" ORDER BY fy_label DESC, created_at DESC")
}

func (s *Store) ListPDRsByUser(ctx context.Context, userID string) ([]PDR, error) {
	return s.listPDRs(ctx, pdrListColumns+" WHERE user_id = $1 ORDER BY fy_label DESC", userID)
}

func (s *Store) UpdateCurrentStep(ctx context.Context, pdrID string, step int) error {
	_, err := s.DB.Exec(ctx, "UPDATE pdrs SET current_step = $1, updated_at = now() WHERE id = $2", step, pdrID)
	return err
}

// ApplyTransition persists a transition delta inside one transaction. The
// root update is guarded by the from-status: if a concurrent transition got
// there first, zero rows match and the caller sees ErrStatusConflict.
func (s *Store) ApplyTransition(ctx context.Context, pdrID string, from Status, delta Delta, now time.Time) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	sets := []string{"updated_at = now()"}
	args := []any{}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if delta.Status != nil {
		add("status", string(*delta.Status))
	}
	if delta.CurrentStep != nil {
		add("current_step", *delta.CurrentStep)
	}
	if delta.IsLocked != nil {
		add("is_locked", *delta.IsLocked)
	}
	if delta.LockedAt != nil {
		add("locked_at", *delta.LockedAt)
	}
	if delta.LockedBy != nil {
		add("locked_by", *delta.LockedBy)
	}
	if delta.MeetingBooked != nil {
		add("meeting_booked", *delta.MeetingBooked)
	}
	if delta.MeetingBookedAt != nil {
		add("meeting_booked_at", *delta.MeetingBookedAt)
	}
	if delta.SubmittedAt != nil {
		add("submitted_at", *delta.SubmittedAt)
	}
	if delta.CalibratedAt != nil {
		add("calibrated_at", *delta.CalibratedAt)
	}
	if delta.CalibratedBy != nil {
		add("calibrated_by", *delta.CalibratedBy)
	}

	args = append(args, pdrID)
	idPos := len(args)
	args = append(args, string(from))
	fromPos := len(args)

	query := "UPDATE pdrs SET " + joinSets(sets) + fmt.Sprintf(" WHERE id = $%d AND status = $%d", idPos, fromPos)
	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusConflict
	}

	if delta.SynthesizedMidYear != nil {
		if _, err := tx.Exec(ctx, `
      INSERT INTO mid_year_reviews (pdr_id, progress_summary, ceo_feedback)
      VALUES ($1,$2,$3)
      ON CONFLICT (pdr_id) DO UPDATE SET ceo_feedback = EXCLUDED.ceo_feedback, updated_at = now()
    `, pdrID, delta.SynthesizedMidYear.ProgressSummary, delta.SynthesizedMidYear.CEOFeedback); err != nil {
			return err
		}
	}
	if delta.MidYearFeedback != nil {
		if _, err := tx.Exec(ctx, `
      UPDATE mid_year_reviews SET ceo_feedback = $1, updated_at = now() WHERE pdr_id = $2
    `, *delta.MidYearFeedback, pdrID); err != nil {
			return err
		}
	}
	if delta.MidYearSubmittedAt != nil {
		if _, err := tx.Exec(ctx, `
      UPDATE mid_year_reviews SET submitted_at = $1, updated_at = now() WHERE pdr_id = $2
    `, *delta.MidYearSubmittedAt, pdrID); err != nil {
			return err
		}
	}
	if delta.EndYearRating != nil {
		if _, err := tx.Exec(ctx, `
      UPDATE end_year_reviews SET ceo_rating = $1, updated_at = now() WHERE pdr_id = $2
    `, *delta.EndYearRating, pdrID); err != nil {
			return err
		}
	}
	if delta.EndYearSubmittedAt != nil {
		if _, err := tx.Exec(ctx, `
      UPDATE end_year_reviews SET submitted_at = $1, updated_at = now() WHERE pdr_id = $2
    `, *delta.EndYearSubmittedAt, pdrID); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func joinSets(sets []string) string {
	out := ""
	for i, set := range sets {
		if i > 0 {
			out += ", "
		}
		out += set
	}
	return out
}

func (s *Store) CreateGoal(ctx context.Context, g *Goal) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO goals (pdr_id, title, description, target_outcome, success_criteria, priority, sort_order, employee_progress)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
    RETURNING id
  `, g.PDRID, g.Title, g.Description, g.TargetOutcome, g.SuccessCriteria, string(g.Priority), g.SortOrder, g.EmployeeProgress).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) UpdateGoal(ctx context.Context, g *Goal) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE goals
    SET title = $1, description = $2, target_outcome = $3, success_criteria = $4, priority = $5, updated_at = now()
    WHERE id = $6 AND pdr_id = $7
  `, g.Title, g.Description, g.TargetOutcome, g.SuccessCriteria, string(g.Priority), g.ID, g.PDRID)
	return err
}

func (s *Store) UpdateGoalRatings(ctx context.Context, pdrID string, upd GoalRatingUpdate) error {
	sets := []string{"updated_at = now()"}
	args := []any{}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if upd.EmployeeProgress != nil {
		add("employee_progress", *upd.EmployeeProgress)
	}
	if upd.EmployeeRating != nil {
		add("employee_rating", *upd.EmployeeRating)
	}
	if upd.CEORating != nil {
		add("ceo_rating", *upd.CEORating)
	}
	if upd.CEOComments != nil {
		add("ceo_comments", *upd.CEOComments)
	}
	args = append(args, upd.GoalID, pdrID)
	query := "UPDATE goals SET " + joinSets(sets) + fmt.Sprintf(" WHERE id = $%d AND pdr_id = $%d", len(args)-1, len(args))
	tag, err := s.DB.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrGoalNotFound
	}
	return nil
}

func (s *Store) DeleteGoal(ctx context.Context, pdrID, goalID string) error {
	_, err := s.DB.Exec(ctx, "DELETE FROM goals WHERE id = $1 AND pdr_id = $2", goalID, pdrID)
	return err
}

func (s *Store) CreateBehavior(ctx context.Context, b *Behavior) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO behaviors (pdr_id, company_value_id, description, examples, sort_order)
    VALUES ($1,$2,$3,$4,$5)
    RETURNING id
  `, b.PDRID, b.CompanyValueID, b.Description, b.Examples, b.SortOrder).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return "", ErrBehaviorExists
		}
		return "", err
	}
	return id, nil
}

func (s *Store) UpdateBehavior(ctx context.Context, b *Behavior) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE behaviors
    SET description = $1, examples = $2, updated_at = now()
    WHERE id = $3 AND pdr_id = $4
  `, b.Description, b.Examples, b.ID, b.PDRID)
	return err
}

func (s *Store) UpdateBehaviorRatings(ctx context.Context, pdrID string, upd BehaviorRatingUpdate) error {
	sets := []string{"updated_at = now()"}
	args := []any{}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if upd.EmployeeRating != nil {
		add("employee_rating", *upd.EmployeeRating)
	}
	if upd.CEORating != nil {
		add("ceo_rating", *upd.CEORating)
	}
	if upd.CEOAdjustedInitiative != nil {
		add("ceo_adjusted_initiative", *upd.CEOAdjustedInitiative)
	}
	if upd.CEOComments != nil {
		add("ceo_comments", *upd.CEOComments)
	}
	args = append(args, upd.BehaviorID, pdrID)
	query := "UPDATE behaviors SET " + joinSets(sets) + fmt.Sprintf(" WHERE id = $%d AND pdr_id = $%d", len(args)-1, len(args))
	tag, err := s.DB.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBehaviorNotFound
	}
	return nil
}

func (s *Store) DeleteBehavior(ctx context.Context, pdrID, behaviorID string) error {
	_, err := s.DB.Exec(ctx, "DELETE FROM behaviors WHERE id = $1 AND pdr_id = $2", behaviorID, pdrID)
	return err
}

func (s *Store) UpsertMidYear(ctx context.Context, review *MidYearReview) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO mid_year_reviews (pdr_id, progress_summary, employee_comments)
    VALUES ($1,$2,$3)
    ON CONFLICT (pdr_id) DO UPDATE
      SET progress_summary = EXCLUDED.progress_summary,
          employee_comments = EXCLUDED.employee_comments,
          updated_at = now()
  `, review.PDRID, review.ProgressSummary, review.EmployeeComments)
	return err
}

func (s *Store) UpsertEndYear(ctx context.Context, review *EndYearReview) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO end_year_reviews (pdr_id, achievements, employee_comments)
    VALUES ($1,$2,$3)
    ON CONFLICT (pdr_id) DO UPDATE
      SET achievements = EXCLUDED.achievements,
          employee_comments = EXCLUDED.employee_comments,
          updated_at = now()
  `, review.PDRID, review.Achievements, review.EmployeeComments)
	return err
}

func (s *Store) ListCompanyValues(ctx context.Context) ([]CompanyValue, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, name, description, sort_order
    FROM company_values
    ORDER BY sort_order, name
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CompanyValue
	for rows.Next() {
		var cv CompanyValue
		if err := rows.Scan(&cv.ID, &cv.Name, &cv.Description, &cv.SortOrder); err != nil {
			return nil, err
		}
		out = append(out, cv)
	}
	return out, rows.Err()
}

func (s *Store) CEOUserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.DB.Query(ctx, "SELECT id FROM users WHERE role = $1 AND status = 'active'", string(RoleCEO))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
