package repository

import (
	"database/sql"
	"fmt"
	"log"

	"golang.org/x/crypto/bcrypt"
)

func CreateTableIfNotExists(db *sql.DB) {
	query := `
CREATE TABLE IF NOT EXISTS academies (
    id SERIAL PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS users (
    id SERIAL PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    email VARCHAR(255) NOT NULL UNIQUE,
    phone_number VARCHAR(255),
    password VARCHAR(255),
    role VARCHAR(32) NOT NULL,
    academy_id INT REFERENCES academies (id),
    is_approved BOOLEAN NOT NULL DEFAULT FALSE,
    business_license VARCHAR(255),
    is_kakao_linked BOOLEAN NOT NULL DEFAULT FALSE,
    kakao_id VARCHAR(255),
    kakao_access_token TEXT,
    kakao_refresh_token TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS tasks (
    id SERIAL PRIMARY KEY,
    title VARCHAR(255) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    images TEXT NOT NULL DEFAULT '[]',
    due_date TIMESTAMPTZ,
    status VARCHAR(32) NOT NULL,
    assigned_to_id INT NOT NULL REFERENCES users (id),
    created_by_id INT NOT NULL REFERENCES users (id),
    academy_id INT NOT NULL REFERENCES academies (id),
    created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS task_status_history (
    id SERIAL PRIMARY KEY,
    task_id INT NOT NULL REFERENCES tasks (id),
    previous_status VARCHAR(32) NOT NULL,
    new_status VARCHAR(32) NOT NULL,
    changed_by_id INT NOT NULL,
    changed_by_name VARCHAR(255) NOT NULL,
    changed_by_role VARCHAR(32) NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS subscriptions (
    id SERIAL PRIMARY KEY,
    user_id INT NOT NULL REFERENCES users (id),
    start_date TIMESTAMPTZ NOT NULL,
    end_date TIMESTAMPTZ NOT NULL,
    amount INT NOT NULL,
    status VARCHAR(32) NOT NULL,
    payment_method VARCHAR(32) NOT NULL,
    payment_id VARCHAR(255) NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS payment_history (
    id SERIAL PRIMARY KEY,
    user_id INT NOT NULL REFERENCES users (id),
    amount INT NOT NULL,
    payment_method VARCHAR(32) NOT NULL,
    payment_id VARCHAR(255) NOT NULL,
    status VARCHAR(32) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := db.Exec(query)
	if err != nil {
		log.Fatalf("Error creating tables: %v", err)
	} else {
		fmt.Println("Tables 'academies', 'users', 'tasks', 'task_status_history', 'subscriptions', 'payment_history' are ready.")
	}
}

// CreateSuperAdmin inserts the platform operator account used to approve
// academy registrations. Safe to call repeatedly.
func CreateSuperAdmin(db *sql.DB, email, password string) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Error hashing password: %v", err)
	}

	query := `INSERT INTO users (name, email, password, role, is_approved)
              VALUES ($1, $2, $3, 'SUPER_ADMIN', TRUE)
              ON CONFLICT (email) DO NOTHING`
	_, err = db.Exec(query, "Super Admin", email, string(hashedPassword))
	if err != nil {
		log.Fatalf("Error inserting super admin: %v", err)
	}
}

func DeleteAllTable(db *sql.DB) {
	query := `
    DROP TABLE IF EXISTS payment_history;
    DROP TABLE IF EXISTS subscriptions;
    DROP TABLE IF EXISTS task_status_history;
    DROP TABLE IF EXISTS tasks;
    DROP TABLE IF EXISTS users;
    DROP TABLE IF EXISTS academies;
    `

	_, err := db.Exec(query)
	if err != nil {
		log.Fatalf("Error deleting tables: %v", err)
	}
}
