package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"classbook/internal/models"
)

// ClassroomFilter narrows a classroom search. Nil fields are not applied.
type ClassroomFilter struct {
	MinCapacity *int
	Projector   *bool
	Whiteboard  *bool
	Location    string
}

// CreateClassroom adds a classroom and returns it with the assigned id.
func (db *DB) CreateClassroom(ctx context.Context, room models.Classroom) (*models.Classroom, error) {
	query := `INSERT INTO classrooms (name, location, capacity, projector, whiteboard) VALUES (?, ?, ?, ?, ?)`

	result, err := db.db.ExecContext(ctx, query,
		room.Name, room.Location, room.Capacity,
		room.Equipment.Projector, room.Equipment.Whiteboard,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create classroom: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	room.ID = id
	return &room, nil
}

// GetClassroom returns the classroom or (nil, nil) when the id is unknown.
func (db *DB) GetClassroom(ctx context.Context, id int64) (*models.Classroom, error) {
	query := `SELECT id, name, location, capacity, projector, whiteboard FROM classrooms WHERE id = ?`

	var room models.Classroom
	err := db.db.QueryRowContext(ctx, query, id).Scan(
		&room.ID, &room.Name, &room.Location, &room.Capacity,
		&room.Equipment.Projector, &room.Equipment.Whiteboard,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// GetAllClassrooms returns the full catalog keyed by id.
func (db *DB) GetAllClassrooms(ctx context.Context) (map[int64]models.Classroom, error) {
	query := `SELECT id, name, location, capacity, projector, whiteboard FROM classrooms`

	rows, err := db.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rooms := make(map[int64]models.Classroom)
	for rows.Next() {
		var room models.Classroom
		if err := rows.Scan(&room.ID, &room.Name, &room.Location, &room.Capacity,
			&room.Equipment.Projector, &room.Equipment.Whiteboard); err != nil {
			return nil, err
		}
		rooms[room.ID] = room
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return rooms, nil
}

// FilterClassrooms returns classrooms matching every set filter field,
// ordered by id.
func (db *DB) FilterClassrooms(ctx context.Context, filter ClassroomFilter) ([]models.Classroom, error) {
	query := `SELECT id, name, location, capacity, projector, whiteboard FROM classrooms WHERE 1=1`
	var args []interface{}

	if filter.MinCapacity != nil {
		query += ` AND capacity >= ?`
		args = append(args, *filter.MinCapacity)
	}
	if filter.Projector != nil {
		query += ` AND projector = ?`
		args = append(args, *filter.Projector)
	}
	if filter.Whiteboard != nil {
		query += ` AND whiteboard = ?`
		args = append(args, *filter.Whiteboard)
	}
	if filter.Location != "" {
		query += ` AND location = ?`
		args = append(args, filter.Location)
	}
	query += ` ORDER BY id`

	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []models.Classroom
	for rows.Next() {
		var room models.Classroom
		if err := rows.Scan(&room.ID, &room.Name, &room.Location, &room.Capacity,
			&room.Equipment.Projector, &room.Equipment.Whiteboard); err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return rooms, nil
}

// UpdateClassroom replaces the mutable fields of a classroom.
func (db *DB) UpdateClassroom(ctx context.Context, room models.Classroom) error {
	query := `UPDATE classrooms SET name = ?, location = ?, capacity = ?, projector = ?, whiteboard = ? WHERE id = ?`

	result, err := db.db.ExecContext(ctx, query,
		room.Name, room.Location, room.Capacity,
		room.Equipment.Projector, room.Equipment.Whiteboard, room.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update classroom: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SeedClassrooms inserts the configured catalog once; an already populated
// table is left untouched.
func (db *DB) SeedClassrooms(ctx context.Context, rooms []models.Classroom) error {
	var count int
	if err := db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM classrooms`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	for _, room := range rooms {
		if _, err := db.CreateClassroom(ctx, room); err != nil {
			return err
		}
	}
	db.logger.Info().Int("count", len(rooms)).Msg("classroom catalog seeded")
	return nil
}
