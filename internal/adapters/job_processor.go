// Package adapters wires the reconciliation engine to its Postgres, geocoding
// and phone collaborators.
package adapters

import (
	"hcp_job_processor/internal/geocode"
	"hcp_job_processor/internal/jobs"
	jobsrepo "hcp_job_processor/internal/jobs/repository"
	"hcp_job_processor/internal/matching"
	"hcp_job_processor/internal/revenueloss"
	"hcp_job_processor/platform/config"
	"hcp_job_processor/platform/keylock"
	"hcp_job_processor/platform/logger"
	"hcp_job_processor/platform/phone"
)

// ProcessorConfig combines the config interfaces the engine needs.
type ProcessorConfig interface {
	config.ReconcileConfig
	config.GeocodeConfig
}

// ProcessorDB is satisfied by *pgxpool.Pool.
type ProcessorDB interface {
	jobsrepo.DB
	revenueloss.Execer
}

// NewJobProcessor builds a processor over the Postgres stores. A nil locker
// serializes in-process only.
func NewJobProcessor(db ProcessorDB, cfg ProcessorConfig, locker keylock.Locker, log *logger.Logger) (*jobs.Processor, error) {
	repo := jobsrepo.New(db)
	rules := cfg.GetRules()

	deps := jobs.Deps{
		Calls:          repo.Calls,
		Jobs:           repo.Jobs,
		Estimates:      repo.Estimates,
		Averages:       repo.Averages,
		Matcher:        matching.New(matching.DefaultWindow),
		RevenueLoss:    revenueloss.NewCalculator(revenueloss.NewRepository(db), log),
		NormalizePhone: phone.NewNormalizer(cfg.GetPhoneRegion()).Normalize,
		Locker:         locker,
		Log:            log,
	}
	if cfg.IsGeocodeEnabled() {
		deps.Geocoder = geocode.NewService(cfg.GetNominatimURL(), cfg.GetGeocodeCountryCodes(), log)
	}

	return jobs.NewProcessor(deps, jobs.Options{
		QualifiedTags:     rules.QualifiedTags,
		ExcludedTags:      rules.ExcludedTags,
		LaterQualifiedTag: rules.LaterQualifiedTag,
		CallSource:        cfg.GetCallSource(),
	})
}
