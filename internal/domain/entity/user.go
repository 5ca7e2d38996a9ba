package entity

import "time"

type User struct {
	ID        string    `bson:"_id,omitempty"`
	Email     string    `bson:"email"`
	Name      string    `bson:"name,omitempty"`
	Phone     string    `bson:"phone,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
}
