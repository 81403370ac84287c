package orderaction

import (
	"golang.org/x/mod/semver"

	"github.com/yourorg/amazonpay-order-admin/internal/context"
	"github.com/yourorg/amazonpay-order-admin/internal/store"
)

// minimumV2Version is the first plugin version that wrote v2 API metadata.
const minimumV2Version = "v2.0.0"

// VersionForOrder returns the API version tag of order: v2 when the recorded
// integration version is at least 2.0.0, v1 otherwise (including when it is
// missing or unparsable).
func VersionForOrder(order *store.Order) string {
	if order == nil {
		return context.APIVersionV1
	}
	v := order.GetMeta(store.MetaAPIVersion)
	if v == "" {
		return context.APIVersionV1
	}
	if v[0] != 'v' {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return context.APIVersionV1
	}
	if semver.Compare(v, minimumV2Version) >= 0 {
		return context.APIVersionV2
	}
	return context.APIVersionV1
}
