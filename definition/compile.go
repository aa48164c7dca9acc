package definition

import (
	"bytes"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Parse decodes and compiles a YAML process document.
func Parse(data []byte) (*Process, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("definition: document is empty")
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("definition: decode document: %w", err)
	}

	return Compile(doc)
}

// Compile validates a process document and links it into a process graph.
func Compile(doc Document) (*Process, error) {
	if doc.ID == "" {
		return nil, fmt.Errorf("definition: id is required")
	}

	c := &compiler{
		process: &Process{
			ID:    doc.ID,
			Name:  doc.Name,
			index: map[string]*Activity{},
		},
		flows: map[string]struct{}{},
	}

	if err := c.compileScope(nil, doc.Activities, doc.Flows); err != nil {
		return nil, fmt.Errorf("definition %s: %w", doc.ID, err)
	}

	return c.process, nil
}

type compiler struct {
	process *Process
	flows   map[string]struct{}
}

// compileScope compiles the activities and flows within a single scope, which
// is either the top level of the process (parent == nil) or a sub-process.
func (c *compiler) compileScope(
	parent *Activity,
	specs []ActivitySpec,
	flows []FlowSpec,
) error {
	var (
		scope   []*Activity
		initial *Activity
	)

	for _, spec := range specs {
		a, err := c.compileActivity(parent, spec)
		if err != nil {
			return err
		}

		if a.Kind == StartEvent {
			if initial != nil {
				return fmt.Errorf("%s has multiple start events", scopeName(parent))
			}
			initial = a
		}

		scope = append(scope, a)

		if a.Kind == SubProcess {
			if err := c.compileScope(a, spec.Activities, spec.Flows); err != nil {
				return err
			}
		} else if len(spec.Activities) > 0 || len(spec.Flows) > 0 {
			return fmt.Errorf("activity %s: only sub-processes may contain activities", a.ID)
		}
	}

	if initial == nil {
		return fmt.Errorf("%s has no start event", scopeName(parent))
	}

	if parent == nil {
		c.process.Initial = initial
		c.process.Activities = scope
	} else {
		parent.Initial = initial
		parent.Children = scope
	}

	for _, spec := range flows {
		if err := c.compileFlow(parent, spec); err != nil {
			return err
		}
	}

	for i, spec := range specs {
		if err := c.link(scope[i], spec); err != nil {
			return err
		}
	}

	return nil
}

func (c *compiler) compileActivity(parent *Activity, spec ActivitySpec) (*Activity, error) {
	if spec.ID == "" {
		return nil, fmt.Errorf("%s contains an activity with no id", scopeName(parent))
	}

	if _, ok := c.process.index[spec.ID]; ok {
		return nil, fmt.Errorf("activity %s: duplicate id", spec.ID)
	}

	if !spec.Type.IsValid() {
		return nil, fmt.Errorf("activity %s: unknown type %q", spec.ID, spec.Type)
	}

	a := &Activity{
		ID:          spec.ID,
		Name:        spec.Name,
		Kind:        spec.Type,
		Parent:      parent,
		Delegate:    spec.Delegate,
		Script:      spec.Script,
		Event:       spec.Event,
		ErrorCode:   spec.ErrorCode,
		AsyncBefore: spec.AsyncBefore,
	}

	if spec.Timer != nil {
		t, err := compileTimer(*spec.Timer)
		if err != nil {
			return nil, fmt.Errorf("activity %s: %w", a.ID, err)
		}
		a.Timer = t
	}

	if spec.MultiInstance != nil {
		if !a.Kind.isActivity() {
			return nil, fmt.Errorf("activity %s: %s activities can not be multi-instance", a.ID, a.Kind)
		}

		mi := spec.MultiInstance
		if (mi.Cardinality == "") == (mi.Collection == "") {
			return nil, fmt.Errorf("activity %s: multi-instance requires exactly one of cardinality or collection", a.ID)
		}

		a.MultiInstance = &MultiInstance{
			Sequential:          mi.Sequential,
			Cardinality:         mi.Cardinality,
			Collection:          mi.Collection,
			ElementVariable:     mi.ElementVariable,
			CompletionCondition: mi.CompletionCondition,
		}
	}

	switch a.Kind {
	case ScriptTask:
		if a.Script == "" {
			return nil, fmt.Errorf("activity %s: script tasks require a script", a.ID)
		}
	case TimerCatchEvent:
		if a.Timer == nil {
			return nil, fmt.Errorf("activity %s: timer events require a timer", a.ID)
		}
	case BoundaryEvent:
		if spec.AttachedTo == "" {
			return nil, fmt.Errorf("activity %s: boundary events must be attached to an activity", a.ID)
		}
	case ErrorEndEvent:
		if a.ErrorCode == "" {
			return nil, fmt.Errorf("activity %s: error end events require an error code", a.ID)
		}
	}

	c.process.index[a.ID] = a

	return a, nil
}

func (c *compiler) compileFlow(parent *Activity, spec FlowSpec) error {
	if spec.ID == "" {
		return fmt.Errorf("%s contains a flow with no id", scopeName(parent))
	}

	if _, ok := c.flows[spec.ID]; ok {
		return fmt.Errorf("flow %s: duplicate id", spec.ID)
	}
	c.flows[spec.ID] = struct{}{}

	src, err := c.lookup(parent, spec.ID, spec.From)
	if err != nil {
		return err
	}

	dst, err := c.lookup(parent, spec.ID, spec.To)
	if err != nil {
		return err
	}

	if src.Kind.IsEnd() {
		return fmt.Errorf("flow %s: %s is an end event and can not have outgoing flows", spec.ID, src.ID)
	}

	if dst.Kind == StartEvent || dst.Kind == BoundaryEvent {
		return fmt.Errorf("flow %s: %s can not have incoming flows", spec.ID, dst.ID)
	}

	t := &Transition{
		ID:          spec.ID,
		Source:      src,
		Destination: dst,
		Condition:   spec.Condition,
	}

	src.Outgoing = append(src.Outgoing, t)
	dst.Incoming = append(dst.Incoming, t)

	return nil
}

// link resolves references between activities once all flows in the scope
// are known.
func (c *compiler) link(a *Activity, spec ActivitySpec) error {
	if spec.Default != "" {
		for _, t := range a.Outgoing {
			if t.ID == spec.Default {
				a.Default = t
			}
		}

		if a.Default == nil {
			return fmt.Errorf("activity %s: default flow %s is not an outgoing flow", a.ID, spec.Default)
		}
	}

	if a.Kind == BoundaryEvent {
		host, err := c.lookup(a.Parent, a.ID, spec.AttachedTo)
		if err != nil {
			return err
		}

		if !host.Kind.isActivity() {
			return fmt.Errorf("activity %s: can not attach a boundary event to %s", a.ID, host.ID)
		}

		a.AttachedTo = host
		host.Boundaries = append(host.Boundaries, a)
	}

	if a.Kind == ParallelGateway && a.Default != nil {
		return fmt.Errorf("activity %s: parallel gateways can not have a default flow", a.ID)
	}

	return nil
}

// lookup returns the activity with the given ID, which must be in the scope
// owned by parent.
func (c *compiler) lookup(parent *Activity, ref, id string) (*Activity, error) {
	a, ok := c.process.index[id]
	if !ok {
		return nil, fmt.Errorf("%s refers to unknown activity %s", ref, id)
	}

	if a.Parent != parent {
		return nil, fmt.Errorf("%s refers to %s, which is in a different scope", ref, id)
	}

	return a, nil
}

func compileTimer(spec TimerSpec) (*Timer, error) {
	switch {
	case spec.Duration != "" && spec.Date != "":
		return nil, fmt.Errorf("timer must specify either a duration or a date, not both")
	case spec.Duration != "":
		d, err := time.ParseDuration(spec.Duration)
		if err != nil {
			return nil, fmt.Errorf("invalid timer duration: %w", err)
		}
		if d < 0 {
			return nil, fmt.Errorf("timer duration must not be negative")
		}
		return &Timer{Duration: d}, nil
	case spec.Date != "":
		t, err := time.Parse(time.RFC3339, spec.Date)
		if err != nil {
			return nil, fmt.Errorf("invalid timer date: %w", err)
		}
		return &Timer{Date: t}, nil
	default:
		return nil, fmt.Errorf("timer must specify a duration or a date")
	}
}

func scopeName(parent *Activity) string {
	if parent == nil {
		return "process"
	}
	return "sub-process " + parent.ID
}
