package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/cucumber/godog"

	"github.com/moai-adk/orchestrator/internal/deps"
	"github.com/moai-adk/orchestrator/internal/roadmap"
	"github.com/moai-adk/orchestrator/internal/scheduler"
	"github.com/moai-adk/orchestrator/internal/storage/memory"
	"github.com/moai-adk/orchestrator/internal/types"
)

// Lifecycle BDD test context
type lifecycleBDDTestContext struct {
	backend   *memory.Store
	store     *roadmap.Store
	machine   *Machine
	lastError error
}

func (c *lifecycleBDDTestContext) aRoadmapWithSpecs(table *godog.Table) error {
	c.backend = memory.New()
	c.store = roadmap.Open(context.Background(), c.backend, roadmap.WithNow(t0))
	c.machine = New(c.store, WithWarnf(func(string, ...interface{}) {}))

	for i, row := range table.Rows {
		if i == 0 {
			continue
		}
		id := row.Cells[0].Value
		status, err := types.ParseStatus(row.Cells[1].Value)
		if err != nil {
			return err
		}
		var depIDs []string
		if raw := strings.TrimSpace(row.Cells[2].Value); raw != "" {
			for _, d := range strings.Split(raw, ",") {
				depIDs = append(depIDs, strings.TrimSpace(d))
			}
		}
		c.store.Upsert(id, "specs/"+id, depIDs)
		if status != types.StatusPending {
			spec, _ := c.store.Get(id)
			spec.Status = status
			spec.History = append(spec.History, types.Transition{From: types.StatusPending, To: status, Timestamp: t0})
		}
	}
	return nil
}

func (c *lifecycleBDDTestContext) iUpdateTo(id, status string) error {
	s, err := types.ParseStatus(status)
	if err != nil {
		return err
	}
	_, c.lastError = c.machine.Update(context.Background(), id, s)
	if c.lastError != nil && !errors.Is(c.lastError, ErrNotFound) {
		return c.lastError
	}
	return nil
}

func (c *lifecycleBDDTestContext) specShouldBeBlocked(id string) error {
	spec, ok := c.store.Get(id)
	if !ok {
		return fmt.Errorf("%s not tracked", id)
	}
	if deps.IsUnblocked(c.store.Roadmap(), spec) {
		return fmt.Errorf("%s is unblocked", id)
	}
	return nil
}

func (c *lifecycleBDDTestContext) specShouldBeUnblocked(id string) error {
	spec, ok := c.store.Get(id)
	if !ok {
		return fmt.Errorf("%s not tracked", id)
	}
	if !deps.IsUnblocked(c.store.Roadmap(), spec) {
		return fmt.Errorf("%s is still blocked by %v", id, deps.Blockers(c.store.Roadmap(), spec))
	}
	return nil
}

func (c *lifecycleBDDTestContext) theNextActionShouldRecommend(id string) error {
	a := scheduler.NextAction(c.store.Roadmap(), scheduler.DefaultAlternates)
	if a.Kind != scheduler.ActionRecommend || a.SpecID != id {
		return fmt.Errorf("next action = %+v, want recommend %s", a, id)
	}
	return nil
}

func (c *lifecycleBDDTestContext) theNextActionShouldBeToFinish(id string) error {
	a := scheduler.NextAction(c.store.Roadmap(), scheduler.DefaultAlternates)
	if a.Kind != scheduler.ActionRunning || a.SpecID != id {
		return fmt.Errorf("next action = %+v, want running %s", a, id)
	}
	return nil
}

func (c *lifecycleBDDTestContext) specShouldHaveHistoryEndingIn(id string, n int, status string) error {
	spec, ok := c.store.Get(id)
	if !ok {
		return fmt.Errorf("%s not tracked", id)
	}
	if len(spec.History) != n {
		return fmt.Errorf("%s has %d history entries, want %d", id, len(spec.History), n)
	}
	if last := spec.History[n-1].To; string(last) != status {
		return fmt.Errorf("last transition of %s is to %s, want %s", id, last, status)
	}
	return nil
}

func (c *lifecycleBDDTestContext) specShouldHaveHistoryEntries(id string, n int) error {
	spec, ok := c.store.Get(id)
	if !ok {
		return fmt.Errorf("%s not tracked", id)
	}
	if len(spec.History) != n {
		return fmt.Errorf("%s has %d history entries, want %d", id, len(spec.History), n)
	}
	return nil
}

func (c *lifecycleBDDTestContext) nothingShouldHaveBeenSaved() error {
	if n := c.backend.Saves(); n != 0 {
		return fmt.Errorf("store saved %d times", n)
	}
	return nil
}

func (c *lifecycleBDDTestContext) theUpdateShouldFailWithNotFound() error {
	if !errors.Is(c.lastError, ErrNotFound) {
		return fmt.Errorf("last error = %v, want not found", c.lastError)
	}
	return nil
}

func TestLifecycleBDD(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: func(ctx *godog.ScenarioContext) {
			testCtx := &lifecycleBDDTestContext{}

			ctx.Step(`^a roadmap with specs:$`, testCtx.aRoadmapWithSpecs)
			ctx.Step(`^I update "([^"]*)" to "([^"]*)"$`, testCtx.iUpdateTo)

			ctx.Step(`^"([^"]*)" should be blocked$`, testCtx.specShouldBeBlocked)
			ctx.Step(`^"([^"]*)" should be unblocked$`, testCtx.specShouldBeUnblocked)
			ctx.Step(`^the next action should recommend "([^"]*)"$`, testCtx.theNextActionShouldRecommend)
			ctx.Step(`^the next action should be to finish "([^"]*)"$`, testCtx.theNextActionShouldBeToFinish)

			ctx.Step(`^"([^"]*)" should have (\d+) history entry ending in "([^"]*)"$`, testCtx.specShouldHaveHistoryEndingIn)
			ctx.Step(`^"([^"]*)" should have (\d+) history entries$`, testCtx.specShouldHaveHistoryEntries)
			ctx.Step(`^nothing should have been saved$`, testCtx.nothingShouldHaveBeenSaved)
			ctx.Step(`^the update should fail with not found$`, testCtx.theUpdateShouldFailWithNotFound)
		},
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
