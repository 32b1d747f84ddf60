package session

import (
	"encoding/json"
	"strings"

	"github.com/angelmondragon/storefront/pkg/types"
)

// User is the cached record of the logged-in shopper. Fields the API returns
// beyond the known ones are kept in Extra and written back unchanged.
type User struct {
	ID    types.ID `json:"id"`
	Name  string   `json:"name"`
	Email string   `json:"email"`
	Phone string   `json:"phone,omitempty"`
	CPF   string   `json:"cpf,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

var knownUserFields = map[string]struct{}{
	"id": {}, "name": {}, "email": {}, "phone": {}, "cpf": {},
}

// FirstName is the first word of Name.
func (u User) FirstName() string {
	fields := strings.Fields(u.Name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func (u *User) UnmarshalJSON(data []byte) error {
	type plain User
	var known plain
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for k := range knownUserFields {
		delete(all, k)
	}
	*u = User(known)
	if len(all) > 0 {
		u.Extra = all
	}
	return nil
}

func (u User) MarshalJSON() ([]byte, error) {
	type plain User
	base, err := json.Marshal(plain(u))
	if err != nil {
		return nil, err
	}
	if len(u.Extra) == 0 {
		return base, nil
	}
	merged := make(map[string]json.RawMessage, len(u.Extra)+len(knownUserFields))
	for k, v := range u.Extra {
		if _, known := knownUserFields[k]; !known {
			merged[k] = v
		}
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(base, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		merged[k] = v
	}
	return json.Marshal(merged)
}
