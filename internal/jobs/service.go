// Package jobs implements the job board's listings, applications and
// profiles on top of document storage, reading through the cache.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/muandane/special-stack/jobcache/internal/cache"
	"github.com/muandane/special-stack/jobcache/internal/fetch"
	"github.com/muandane/special-stack/jobcache/internal/storage"
)

// NotFoundError reports a missing job, application or profile.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Resource, e.ID)
}

// ValidationError reports invalid input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// Cache keys
func searchKey(q SearchQuery) string      { return "jobs:search:" + q.Key() }
func jobKey(id string) string             { return "jobs:" + id }
func applicationsKey(jobID string) string { return "applications:" + jobID }
func profileKey(userID string) string     { return "profiles:" + userID }

// Storage keys
func jobDoc(id string) string                { return "jobs/" + id + ".json" }
func applicationDoc(jobID, id string) string { return "applications/" + jobID + "/" + id + ".json" }
func profileDoc(userID string) string        { return "profiles/" + userID + ".json" }

type Service struct {
	docs   storage.Documents
	cache  *cache.Store
	group  *singleflight.Group
	logger *slog.Logger
	now    func() time.Time
}

type Options struct {
	// DedupeFetch shares one storage read among concurrent misses on a key.
	DedupeFetch bool
	Logger      *slog.Logger
}

func NewService(docs storage.Documents, store *cache.Store, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		docs:   docs,
		cache:  store,
		logger: logger.With("component", "jobs"),
		now:    time.Now,
	}
	if opts.DedupeFetch {
		s.group = &singleflight.Group{}
	}
	return s
}

func (s *Service) queryOptions(ttl time.Duration) []fetch.Option {
	opts := []fetch.Option{fetch.WithTTL(ttl), fetch.WithLogger(s.logger)}
	if s.group != nil {
		opts = append(opts, fetch.WithGroup(s.group))
	}
	return opts
}

// load runs a one-shot query: it is mounted for the duration of the call.
func load[T any](ctx context.Context, s *Service, key string, ttl time.Duration, refresh bool, fn fetch.FetchFunc[T]) (T, error) {
	q := fetch.New(s.cache, key, fn, s.queryOptions(ttl)...)
	defer q.Close()

	var err error
	if refresh {
		err = q.Refetch(ctx)
	} else {
		err = q.Load(ctx)
	}
	if err != nil {
		var zero T
		return zero, err
	}
	return q.Result().Data, nil
}

func (s *Service) SearchJobs(ctx context.Context, query SearchQuery, refresh bool) (SearchResult, error) {
	query = query.normalized()
	if query.EmploymentType != "" && !query.EmploymentType.valid() {
		return SearchResult{}, &ValidationError{Field: "type", Message: "unknown employment type"}
	}
	return load(ctx, s, searchKey(query), cache.ShortTTL, refresh, func(ctx context.Context) (SearchResult, error) {
		all, err := s.allJobs(ctx)
		if err != nil {
			return SearchResult{}, err
		}

		var matched []Job
		for _, j := range all {
			if query.matches(j) {
				matched = append(matched, j)
			}
		}
		sort.SliceStable(matched, func(a, b int) bool {
			return matched[a].PostedAt.After(matched[b].PostedAt)
		})

		res := SearchResult{Total: len(matched), Jobs: []Job{}}
		if query.Offset < len(matched) {
			end := min(query.Offset+query.Limit, len(matched))
			res.Jobs = matched[query.Offset:end]
		}
		return res, nil
	})
}

func (s *Service) GetJob(ctx context.Context, id string, refresh bool) (Job, error) {
	return load(ctx, s, jobKey(id), cache.MediumTTL, refresh, func(ctx context.Context) (Job, error) {
		var j Job
		err := s.readDoc(ctx, jobDoc(id), "job", id, &j)
		return j, err
	})
}

// PostJob creates a job, or replaces it when job.ID is set.
func (s *Service) PostJob(ctx context.Context, job Job) (Job, error) {
	if err := validateJob(job); err != nil {
		return Job{}, err
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.PostedAt.IsZero() {
		job.PostedAt = s.now().UTC()
	}
	if err := s.writeDoc(ctx, jobDoc(job.ID), job); err != nil {
		return Job{}, err
	}
	s.cache.Remove(jobKey(job.ID))
	s.logger.Info("job posted", "job_id", job.ID, "employer_id", job.EmployerID)
	return job, nil
}

func (s *Service) DeleteJob(ctx context.Context, id string) error {
	if err := s.docs.Delete(ctx, jobDoc(id)); err != nil {
		return s.storageErr(err, "job", id)
	}
	s.cache.Remove(jobKey(id))
	s.cache.Remove(applicationsKey(id))
	s.logger.Info("job deleted", "job_id", id)
	return nil
}

func (s *Service) SubmitApplication(ctx context.Context, app Application) (Application, error) {
	if strings.TrimSpace(app.ApplicantID) == "" {
		return Application{}, &ValidationError{Field: "applicant_id", Message: "required"}
	}
	if _, err := s.GetJob(ctx, app.JobID, false); err != nil {
		return Application{}, err
	}

	app.ID = uuid.NewString()
	app.Status = StatusSubmitted
	app.SubmittedAt = s.now().UTC()
	if err := s.writeDoc(ctx, applicationDoc(app.JobID, app.ID), app); err != nil {
		return Application{}, err
	}
	s.cache.Remove(applicationsKey(app.JobID))
	s.logger.Info("application submitted", "job_id", app.JobID, "application_id", app.ID)
	return app, nil
}

func (s *Service) ListApplications(ctx context.Context, jobID string, refresh bool) ([]Application, error) {
	return load(ctx, s, applicationsKey(jobID), cache.ShortTTL, refresh, func(ctx context.Context) ([]Application, error) {
		keys, err := s.docs.List(ctx, "applications/"+jobID+"/")
		if err != nil {
			return nil, err
		}
		apps := make([]Application, 0, len(keys))
		for _, k := range keys {
			var a Application
			if err := s.readDoc(ctx, k, "application", k, &a); err != nil {
				return nil, err
			}
			apps = append(apps, a)
		}
		sort.SliceStable(apps, func(a, b int) bool {
			return apps[a].SubmittedAt.Before(apps[b].SubmittedAt)
		})
		return apps, nil
	})
}

// UpdateApplicationStatus moves an application through the employer's review.
func (s *Service) UpdateApplicationStatus(ctx context.Context, jobID, appID string, status ApplicationStatus) (Application, error) {
	if !status.valid() {
		return Application{}, &ValidationError{Field: "status", Message: "unknown application status"}
	}

	var app Application
	if err := s.readDoc(ctx, applicationDoc(jobID, appID), "application", appID, &app); err != nil {
		return Application{}, err
	}
	app.Status = status
	if err := s.writeDoc(ctx, applicationDoc(jobID, appID), app); err != nil {
		return Application{}, err
	}
	s.cache.Remove(applicationsKey(jobID))
	s.logger.Info("application status updated", "job_id", jobID, "application_id", appID, "status", status)
	return app, nil
}

func (s *Service) GetProfile(ctx context.Context, userID string, refresh bool) (Profile, error) {
	return load(ctx, s, profileKey(userID), cache.LongTTL, refresh, func(ctx context.Context) (Profile, error) {
		var p Profile
		err := s.readDoc(ctx, profileDoc(userID), "profile", userID, &p)
		return p, err
	})
}

func (s *Service) PutProfile(ctx context.Context, p Profile) (Profile, error) {
	if strings.TrimSpace(p.UserID) == "" {
		return Profile{}, &ValidationError{Field: "user_id", Message: "required"}
	}
	if strings.TrimSpace(p.Name) == "" {
		return Profile{}, &ValidationError{Field: "name", Message: "required"}
	}
	p.UpdatedAt = s.now().UTC()
	if err := s.writeDoc(ctx, profileDoc(p.UserID), p); err != nil {
		return Profile{}, err
	}
	s.cache.Remove(profileKey(p.UserID))
	return p, nil
}

func (s *Service) allJobs(ctx context.Context) ([]Job, error) {
	keys, err := s.docs.List(ctx, "jobs/")
	if err != nil {
		return nil, err
	}
	out := make([]Job, 0, len(keys))
	for _, k := range keys {
		var j Job
		if err := s.readDoc(ctx, k, "job", k, &j); err != nil {
			// Deleted between listing and reading.
			var nf *NotFoundError
			if errors.As(err, &nf) {
				continue
			}
			return nil, err
		}
		out = append(out, j)
	}
	return out, nil
}

func (s *Service) readDoc(ctx context.Context, key, resource, id string, v any) error {
	data, err := s.docs.Get(ctx, key)
	if err != nil {
		return s.storageErr(err, resource, id)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s %s: %w", resource, id, err)
	}
	return nil
}

func (s *Service) writeDoc(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return s.docs.Put(ctx, key, data)
}

func (s *Service) storageErr(err error, resource, id string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return &NotFoundError{Resource: resource, ID: id}
	}
	return err
}

func validateJob(j Job) error {
	switch {
	case strings.TrimSpace(j.Title) == "":
		return &ValidationError{Field: "title", Message: "required"}
	case strings.TrimSpace(j.EmployerID) == "":
		return &ValidationError{Field: "employer_id", Message: "required"}
	case !j.EmploymentType.valid():
		return &ValidationError{Field: "employment_type", Message: "unknown employment type"}
	case j.SalaryMax != 0 && j.SalaryMax < j.SalaryMin:
		return &ValidationError{Field: "salary_max", Message: "must not be below salary_min"}
	}
	return nil
}
