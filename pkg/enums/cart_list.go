package enums

import "fmt"

// CartList identifies which list a persisted cart line belongs to.
type CartList string

const (
	CartListCart  CartList = "cart"
	CartListSaved CartList = "saved"
)

var validCartLists = []CartList{CartListCart, CartListSaved}

func (l CartList) String() string {
	return string(l)
}

func (l CartList) IsValid() bool {
	for _, candidate := range validCartLists {
		if candidate == l {
			return true
		}
	}
	return false
}

func ParseCartList(value string) (CartList, error) {
	for _, candidate := range validCartLists {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cart list %q", value)
}
