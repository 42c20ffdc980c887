package retrieval

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// EmbeddingText renders the project as the text that gets embedded.
func (p PastProject) EmbeddingText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", p.Title)
	fmt.Fprintf(&b, "Summary: %s\n", p.Summary)
	fmt.Fprintf(&b, "Platform: %s\n", p.Platform)
	if len(p.TechStack) > 0 {
		fmt.Fprintf(&b, "Tech stack: %s\n", strings.Join(p.TechStack, ", "))
	}
	if p.TimelineDays > 0 {
		fmt.Fprintf(&b, "Timeline: %d days\n", p.TimelineDays)
	}
	return b.String()
}

// SampleProjects is the starter corpus indexed by the seed command so a
// fresh install returns sensible recommendations before any real projects
// have been scoped.
func SampleProjects() []PastProject {
	return []PastProject{
		{
			Title:        "Mobile App UI Design for Food Delivery",
			Summary:      "Design a modern, user-friendly interface for a food delivery mobile application",
			Platform:     "topcoder-design",
			TechStack:    []string{"Figma", "Sketch"},
			TimelineDays: 7,
		},
		{
			Title:        "E-commerce Product Recommendation API",
			Summary:      "Develop a machine learning API that provides personalized product recommendations",
			Platform:     "topcoder-development",
			TechStack:    []string{"Python", "FastAPI", "TensorFlow", "PostgreSQL"},
			TimelineDays: 14,
		},
		{
			Title:        "Customer Churn Prediction Model",
			Summary:      "Build a machine learning model to predict customer churn for a subscription service",
			Platform:     "kaggle-datascience",
			TechStack:    []string{"Python", "Pandas", "Scikit-learn", "XGBoost"},
			TimelineDays: 21,
		},
		{
			Title:        "React Dashboard Component Library",
			Summary:      "Create a reusable component library for admin dashboards",
			Platform:     "topcoder-development",
			TechStack:    []string{"React", "TypeScript", "Storybook"},
			TimelineDays: 10,
		},
		{
			Title:        "Team Collaboration Task Board",
			Summary:      "Build a kanban-style task board with realtime updates for small teams",
			Platform:     "topcoder-development",
			TechStack:    []string{"Go", "React", "WebSocket", "PostgreSQL"},
			TimelineDays: 14,
		},
	}
}

// LoadProjectsFile reads additional past projects from a YAML file.
func LoadProjectsFile(path string) ([]PastProject, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "retrieval: read %s", path)
	}
	var wrapper struct {
		Projects []PastProject `yaml:"projects"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrapf(err, "retrieval: parse %s", path)
	}
	return wrapper.Projects, nil
}

// seedConcurrency bounds parallel embed+upsert batches during seeding.
const seedConcurrency = 4

// Seed ensures the collection exists and indexes the given projects,
// embedding in small parallel batches.
func Seed(ctx context.Context, index *QdrantIndex, projects []PastProject) error {
	if err := index.EnsureCollection(ctx); err != nil {
		return err
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(seedConcurrency)
	for _, p := range projects {
		g.Go(func() error {
			return index.Upsert(gCtx, []PastProject{p})
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	zap.L().Info("retrieval: seeded past projects", zap.Int("count", len(projects)))
	return nil
}
