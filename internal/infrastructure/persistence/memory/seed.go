package memory

import (
	"time"

	"github.com/garyjia/disbursement/internal/domain/entity"
)

// SeedUsers returns the same directory the sqlite migrations install
func SeedUsers() []*entity.User {
	now := time.Now().UTC()
	users := []*entity.User{
		{ID: 1, Name: "Ella Santos", Email: "ella.santos@example.com", Role: entity.RoleEmployee, Department: "Sales"},
		{ID: 2, Name: "Marco Reyes", Email: "marco.reyes@example.com", Role: entity.RoleManager, Department: "Sales"},
		{ID: 3, Name: "Fiona Cruz", Email: "fiona.cruz@example.com", Role: entity.RoleFinance, Department: "Finance"},
		{ID: 4, Name: "Carlos Lim", Email: "carlos.lim@example.com", Role: entity.RoleCEO, Department: "Executive"},
		{ID: 5, Name: "Nina Valdez", Email: "nina.valdez@example.com", Role: entity.RoleEmployee, Department: "Engineering"},
	}
	for _, u := range users {
		u.CreatedAt = now
		u.UpdatedAt = now
	}
	return users
}
