package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"telegram-shop/model"
)

const (
	orderColumns = `id, customer_name, customer_phone, customer_address, payment_method, chat_id, items, total, status, created_at, updated_at`

	insertOrderSQL  = `INSERT INTO orders (` + orderColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	selectOrdersSQL = `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at, id`
	selectOrderSQL  = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	updateStatusSQL = `UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3`
)

// orderRow mirrors one row of the orders table; items are stored as JSONB.
type orderRow struct {
	ID              string       `db:"id"`
	CustomerName    string       `db:"customer_name"`
	CustomerPhone   string       `db:"customer_phone"`
	CustomerAddress string       `db:"customer_address"`
	PaymentMethod   string       `db:"payment_method"`
	ChatID          string       `db:"chat_id"`
	Items           []byte       `db:"items"`
	Total           int64        `db:"total"`
	Status          string       `db:"status"`
	CreatedAt       time.Time    `db:"created_at"`
	UpdatedAt       sql.NullTime `db:"updated_at"`
}

// PostgresStore is an OrderStore backed by the orders table.
type PostgresStore struct {
	DB *sqlx.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "connect postgres")
	}
	return &PostgresStore{DB: db}, nil
}

func (s *PostgresStore) Close() error { return s.DB.Close() }

func (s *PostgresStore) Append(order *model.Order) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return errors.Wrap(err, "encode order items")
	}
	var updatedAt sql.NullTime
	if order.UpdatedAt != nil {
		updatedAt = sql.NullTime{Time: *order.UpdatedAt, Valid: true}
	}

	_, err = s.DB.Exec(insertOrderSQL,
		order.ID, order.CustomerName, order.CustomerPhone, order.CustomerAddress,
		order.PaymentMethod, order.ChatID, items, order.Total, string(order.Status),
		order.CreatedAt, updatedAt,
	)
	return errors.Wrapf(err, "insert order %s", order.ID)
}

func (s *PostgresStore) List() ([]model.Order, error) {
	var rows []orderRow
	if err := s.DB.Select(&rows, selectOrdersSQL); err != nil {
		return nil, errors.Wrap(err, "select orders")
	}
	out := make([]model.Order, 0, len(rows))
	for _, r := range rows {
		o, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, nil
}

func (s *PostgresStore) Find(id string) (*model.Order, error) {
	var row orderRow
	err := s.DB.Get(&row, selectOrderSQL, id)
	if err == sql.ErrNoRows {
		return nil, model.ErrOrderNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "select order %s", id)
	}
	return row.toModel()
}

func (s *PostgresStore) UpdateStatus(id string, status model.Status, at time.Time) (*model.Order, error) {
	res, err := s.DB.Exec(updateStatusSQL, string(status), at, id)
	if err != nil {
		return nil, errors.Wrapf(err, "update order %s", id)
	}
	ra, _ := res.RowsAffected()
	if ra == 0 {
		return nil, model.ErrOrderNotFound
	}
	return s.Find(id)
}

func (r orderRow) toModel() (*model.Order, error) {
	o := &model.Order{
		ID: r.ID,
		OrderDraft: model.OrderDraft{
			CustomerName:    r.CustomerName,
			CustomerPhone:   r.CustomerPhone,
			CustomerAddress: r.CustomerAddress,
			PaymentMethod:   r.PaymentMethod,
			ChatID:          r.ChatID,
			Total:           r.Total,
		},
		Status:    model.Status(r.Status),
		CreatedAt: r.CreatedAt,
	}
	if len(r.Items) > 0 {
		if err := json.Unmarshal(r.Items, &o.Items); err != nil {
			return nil, errors.Wrapf(err, "decode items of order %s", r.ID)
		}
	}
	if r.UpdatedAt.Valid {
		t := r.UpdatedAt.Time
		o.UpdatedAt = &t
	}
	return o, nil
}
