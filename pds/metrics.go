package pds

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("github.com/pdscore/go-pdscore/pds")

var (
	RecordsCreatedCounter     metric.Int64Counter
	EncodeFailuresCounter     metric.Int64Counter
	InviteUpdatesCounter      metric.Int64Counter
	InviteCodesCreatedCounter metric.Int64Counter
)

var (
	InvitesDisabledAttr = attribute.Bool("disabled", true)
	InvitesEnabledAttr  = attribute.Bool("disabled", false)
)

func init() {
	var err error
	RecordsCreatedCounter, err = meter.Int64Counter("pds_records_created",
		metric.WithDescription("Number of records canonically encoded and stored"),
	)
	if err != nil {
		panic(err)
	}
	EncodeFailuresCounter, err = meter.Int64Counter("pds_canonical_encode_failures",
		metric.WithDescription("Number of records rejected because they have no canonical encoding"),
	)
	if err != nil {
		panic(err)
	}
	InviteUpdatesCounter, err = meter.Int64Counter("pds_account_invite_updates",
		metric.WithDescription("Number of moderation changes to account invite status"),
	)
	if err != nil {
		panic(err)
	}
	InviteCodesCreatedCounter, err = meter.Int64Counter("pds_invite_codes_created",
		metric.WithDescription("Number of invite codes issued"),
	)
	if err != nil {
		panic(err)
	}
}
