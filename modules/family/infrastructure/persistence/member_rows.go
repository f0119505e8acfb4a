package persistence

import (
	"database/sql"

	"github.com/heshamhussin961-design/family-tree/modules/family/domain/aggregates/member"
)

const memberColumns = `id, full_name, branch_name, parent_id, gender, birth_year, death_year,
	is_alive, image_url, email, phone, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanMember(row scanner) (member.Member, error) {
	var (
		id         int64
		fullName   string
		branchName string
		parentID   sql.NullInt64
		gender     sql.NullString
		birthYear  sql.NullInt64
		deathYear  sql.NullInt64
		isAlive    sql.NullBool
		imageURL   sql.NullString
		email      sql.NullString
		phone      sql.NullString
		createdAt  sql.NullTime
	)
	if err := row.Scan(
		&id, &fullName, &branchName, &parentID, &gender, &birthYear, &deathYear,
		&isAlive, &imageURL, &email, &phone, &createdAt,
	); err != nil {
		return member.Member{}, err
	}

	profile := member.Profile{
		Gender:    member.Gender(gender.String),
		BirthYear: intPtr(birthYear),
		DeathYear: intPtr(deathYear),
		IsAlive:   !isAlive.Valid || isAlive.Bool,
		ImageURL:  imageURL.String,
		Email:     email.String,
		Phone:     phone.String,
	}
	var parent *int64
	if parentID.Valid {
		parent = &parentID.Int64
	}
	return member.Hydrate(id, fullName, branchName, parent, profile, createdAt.Time), nil
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
