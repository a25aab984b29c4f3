package processor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"resume-search/internal/storage"
	"resume-search/internal/storage/models"
	"resume-search/internal/types"

	"github.com/cloudwego/eino/components/embedding"
)

// fakeStore 内存版简历存储
type fakeStore struct {
	mu        sync.Mutex
	rows      map[uint]*models.Resume
	nextID    uint
	createErr error
	fetchErr  error
	deleted   []uint
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[uint]*models.Resume)}
}

func (s *fakeStore) CreateResume(_ context.Context, resume *models.Resume) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	for _, r := range s.rows {
		if r.Email == resume.Email {
			return fmt.Errorf("%w: %s", storage.ErrDuplicateEmail, resume.Email)
		}
	}
	s.nextID++
	resume.ID = s.nextID
	copied := *resume
	s.rows[resume.ID] = &copied
	return nil
}

func (s *fakeStore) put(r *models.Resume) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[r.ID] = r
	if r.ID > s.nextID {
		s.nextID = r.ID
	}
}

func (s *fakeStore) GetResumeByID(_ context.Context, id uint) (*models.Resume, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return nil, storage.ErrResumeNotFound
	}
	return r, nil
}

func (s *fakeStore) GetResumesByIDs(_ context.Context, ids []uint) ([]*models.Resume, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	var out []*models.Resume
	for _, id := range ids {
		if r, ok := s.rows[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeStore) DeleteResume(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[id]; !ok {
		return storage.ErrResumeNotFound
	}
	delete(s.rows, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

type fakePoint struct {
	id        string
	vector    []float64
	text      string
	modelType string
}

// fakeIndex 内存版向量索引，按 resume_id 覆盖写入
type fakeIndex struct {
	mu        sync.Mutex
	points    map[uint]fakePoint
	upsertErr error
	hits      []storage.ScoredResume
	searchErr error
	lastLimit int
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{points: make(map[uint]fakePoint)}
}

func (f *fakeIndex) UpsertResume(_ context.Context, resumeID uint, vector []float64, text string, modelType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return "", f.upsertErr
	}
	id := storage.ResumePointID(resumeID)
	f.points[resumeID] = fakePoint{id: id, vector: vector, text: text, modelType: modelType}
	return id, nil
}

func (f *fakeIndex) SearchResumes(_ context.Context, _ []float64, limit int) ([]storage.ScoredResume, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLimit = limit
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if len(f.hits) > limit {
		return f.hits[:limit], nil
	}
	return f.hits, nil
}

// fakeEmbedder 返回固定向量
type fakeEmbedder struct {
	vector []float64
	err    error
	texts  []string
}

var _ embedding.Embedder = (*fakeEmbedder)(nil)

func (f *fakeEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	f.texts = append(f.texts, texts...)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, nil
}

type fakeExtractor struct {
	fields *types.ResumeFields
	err    error

	gotPath string
	gotData []byte
}

func (f *fakeExtractor) Extract(_ context.Context, path string, _ types.ModelType) (*types.ResumeFields, error) {
	f.gotPath = path
	f.gotData, _ = os.ReadFile(path)
	return f.fields, f.err
}

type fakeQueryExtractor struct {
	fields types.QueryFields
	err    error
}

func (f *fakeQueryExtractor) ExtractQuery(_ context.Context, _ string) (types.QueryFields, error) {
	return f.fields, f.err
}

// fakeStatus 记录每次状态变更
type fakeStatus struct {
	mu      sync.Mutex
	history []types.JobStatus
}

func (f *fakeStatus) SetJobStatus(_ context.Context, status *types.JobStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = append(f.history, *status)
	return nil
}

func (f *fakeStatus) GetJobStatus(_ context.Context, jobID string) (*types.JobStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.history) - 1; i >= 0; i-- {
		if f.history[i].JobID == jobID {
			s := f.history[i]
			return &s, nil
		}
	}
	return nil, storage.ErrJobStatusNotFound
}

func (f *fakeStatus) last() types.JobStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.history[len(f.history)-1]
}

type fakeArchive struct {
	objects map[string][]byte
}

func (f *fakeArchive) DownloadFile(_ context.Context, objectKey string) ([]byte, error) {
	data, ok := f.objects[objectKey]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

type fakePDF struct {
	text string
	err  error
}

func (f *fakePDF) ExtractFromFile(_ context.Context, _ string) (string, map[string]interface{}, error) {
	return f.text, nil, f.err
}

type fakeOCR struct {
	text string
	err  error
}

func (f *fakeOCR) ExtractFromFile(_ context.Context, _ string) (string, error) {
	return f.text, f.err
}

const validReply = "```json\n" + `{
  "Name": "Ada Lovelace",
  "Email": "ada@example.com",
  "Phone Number": "+44 20 0000",
  "Skills": {"python": "expert", "go": "intermediate"},
  "Work Experience": [{"Company": "Analytical Engines", "Role": "Engineer", "Duration": "1842-1843"}],
  "Education": [{"Degree": "Mathematics", "Institution": "Private tutoring", "Year": 1835}],
  "Certifications": [],
  "Projects": [{"Name": "Note G", "Description": "First published algorithm"}],
  "Gpa": 3.9
}` + "\n```"

func validFields() *types.ResumeFields {
	fields, err := parseResumeReply(validReply)
	if err != nil {
		panic(err)
	}
	return fields
}
