package service

import (
	"database/sql"
	"time"
)

func GetExpiresAt(expiresIn int64) sql.NullTime {
	if expiresIn <= 0 {
		return sql.NullTime{}
	}
	return sql.NullTime{
		Time:  time.Now().Add(time.Duration(expiresIn) * time.Second),
		Valid: true,
	}
}
