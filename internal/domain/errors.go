package domain

import "errors"

// errUnsupportedUserInfoType is returned when the sqlite driver hands the
// UserInfo scanner a value of a type it does not know how to decode.
var errUnsupportedUserInfoType = errors.New("domain: unsupported type for user_info_json scan")
