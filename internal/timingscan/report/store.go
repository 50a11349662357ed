package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-redis/redis"
	"github.com/pkg/errors"

	"github.com/G-Research/timingscan/internal/common/scanerrors"
	"github.com/G-Research/timingscan/internal/timingscan/domain"
)

// Store persists subtask reports. Each (target, subtask) pair is saved exactly once per run.
type Store interface {
	Save(r *SubtaskReport) error
	Load(runId string, target string, subtask string) (*SubtaskReport, error)
	List(runId string) ([]*SubtaskReport, error)
}

// FileStore writes one JSON document per report under <root>/<runId>/reports/<target>/<subtask>.json.
type FileStore struct {
	root string
}

func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

func (s *FileStore) Save(r *SubtaskReport) error {
	path := s.path(r.RunId, r.TargetName, r.TaskName)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.WithStack(err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(os.WriteFile(path, data, 0o644))
}

func (s *FileStore) Load(runId string, target string, subtask string) (*SubtaskReport, error) {
	data, err := os.ReadFile(s.path(runId, target, subtask))
	if os.IsNotExist(err) {
		return nil, errors.WithStack(&scanerrors.ErrNotFound{Type: "report", Value: target + "/" + subtask})
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return unmarshalReport(data)
}

func (s *FileStore) List(runId string) ([]*SubtaskReport, error) {
	paths, err := filepath.Glob(filepath.Join(s.root, domain.PathComponent(runId), "reports", "*", "*.json"))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	sort.Strings(paths)
	reports := make([]*SubtaskReport, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		r, err := unmarshalReport(data)
		if err != nil {
			return nil, errors.WithMessagef(err, "reading %s", path)
		}
		reports = append(reports, r)
	}
	return reports, nil
}

func (s *FileStore) path(runId string, target string, subtask string) string {
	return filepath.Join(s.root, domain.PathComponent(runId), "reports", domain.PathComponent(target), domain.PathComponent(subtask)+".json")
}

const reportsPrefix = "Timingscan:Reports:"

// RedisStore keeps the reports of a run in one hash keyed by target and subtask.
type RedisStore struct {
	Db redis.UniversalClient
}

func NewRedisStore(db redis.UniversalClient) *RedisStore {
	return &RedisStore{Db: db}
}

func (s *RedisStore) Save(r *SubtaskReport) error {
	data, err := json.Marshal(r)
	if err != nil {
		return errors.WithStack(err)
	}
	pipe := s.Db.TxPipeline()
	pipe.HSet(reportsPrefix+r.RunId, field(r.TargetName, r.TaskName), data)
	pipe.SAdd(reportsPrefix+"Runs", r.RunId)
	_, err = pipe.Exec()
	return errors.WithStack(err)
}

func (s *RedisStore) Load(runId string, target string, subtask string) (*SubtaskReport, error) {
	data, err := s.Db.HGet(reportsPrefix+runId, field(target, subtask)).Bytes()
	if err == redis.Nil {
		return nil, errors.WithStack(&scanerrors.ErrNotFound{Type: "report", Value: field(target, subtask)})
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return unmarshalReport(data)
}

func (s *RedisStore) List(runId string) ([]*SubtaskReport, error) {
	result, err := s.Db.HGetAll(reportsPrefix + runId).Result()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	keys := make([]string, 0, len(result))
	for k := range result {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	reports := make([]*SubtaskReport, 0, len(keys))
	for _, k := range keys {
		r, err := unmarshalReport([]byte(result[k]))
		if err != nil {
			return nil, errors.WithMessagef(err, "reading report %s", k)
		}
		reports = append(reports, r)
	}
	return reports, nil
}

func field(target string, subtask string) string {
	return target + "/" + subtask
}

func unmarshalReport(data []byte) (*SubtaskReport, error) {
	r := &SubtaskReport{}
	if err := json.Unmarshal(data, r); err != nil {
		return nil, errors.WithStack(err)
	}
	return r, nil
}
