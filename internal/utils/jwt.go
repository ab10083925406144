package utils // package utils provides helpers for staff token creation

import (
    "errors"
    "strconv"
    "time"

    "github.com/golang-jwt/jwt/v5"
)

// Staff roles carried in the "role" claim.
const (
    RoleStaff   = "STAFF"
    RoleManager = "MANAGER"
)

// AccessToken is a signed staff JWT along with its expiry.  Staff devices
// send it in the Authorization header on every call.
type AccessToken struct {
    Token string    `json:"token"`
    Exp   time.Time `json:"expires_at"`
}

// NewAccessToken signs an HS256 JWT for a staff member of one business.
// The claims are sub (staff ID as a string), business_id, role, exp and
// iat.  The business_id claim is what scopes every request to a tenant.
func NewAccessToken(secret string, staffID, businessID uint64, role string, ttl time.Duration, now time.Time) (AccessToken, error) {
    if secret == "" {
        return AccessToken{}, errors.New("jwt secret is empty")
    }
    if businessID == 0 {
        return AccessToken{}, errors.New("business id is required")
    }
    if role != RoleStaff && role != RoleManager {
        return AccessToken{}, errors.New("unknown role " + strconv.Quote(role))
    }
    now = now.UTC()
    exp := now.Add(ttl)
    claims := jwt.MapClaims{
        "sub":         strconv.FormatUint(staffID, 10),
        "business_id": businessID,
        "role":        role,
        "exp":         exp.Unix(),
        "iat":         now.Unix(),
    }
    t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
    signed, err := t.SignedString([]byte(secret))
    if err != nil {
        return AccessToken{}, err
    }
    return AccessToken{Token: signed, Exp: exp}, nil
}
