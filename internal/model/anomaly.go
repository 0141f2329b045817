package model

import "time"

// AnomalyLabel annotates an anomaly. SourcePostProcessor and SourceNodeName
// record which post-processor and plan node produced the label.
type AnomalyLabel struct {
	Name                string         `json:"name" yaml:"name"`
	SourcePostProcessor string         `json:"sourcePostProcessor,omitempty" yaml:"sourcePostProcessor,omitempty"`
	SourceNodeName      string         `json:"sourceNodeName,omitempty" yaml:"sourceNodeName,omitempty"`
	Ignore              bool           `json:"ignore" yaml:"ignore"`
	Metadata            map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Clone copies the label including its metadata.
func (l AnomalyLabel) Clone() AnomalyLabel {
	l.Metadata = CloneMap(l.Metadata)
	return l
}

// EnumerationItemRef is a weak reference to a persisted enumeration item.
type EnumerationItemRef struct {
	ID int64 `json:"id" yaml:"id"`
}

// Anomaly is a detected interval [StartTime, EndTime) in epoch milliseconds.
type Anomaly struct {
	StartTime          int64               `json:"startTime" yaml:"startTime"`
	EndTime            int64               `json:"endTime" yaml:"endTime"`
	AvgCurrentVal      *float64            `json:"avgCurrentVal,omitempty" yaml:"avgCurrentVal,omitempty"`
	AvgBaselineVal     *float64            `json:"avgBaselineVal,omitempty" yaml:"avgBaselineVal,omitempty"`
	LowerBound         *float64            `json:"lowerBound,omitempty" yaml:"lowerBound,omitempty"`
	UpperBound         *float64            `json:"upperBound,omitempty" yaml:"upperBound,omitempty"`
	Metric             string              `json:"metric,omitempty" yaml:"metric,omitempty"`
	Dataset            string              `json:"dataset,omitempty" yaml:"dataset,omitempty"`
	Source             string              `json:"source,omitempty" yaml:"source,omitempty"`
	AlertID            *int64              `json:"alertId,omitempty" yaml:"alertId,omitempty"`
	EnumerationItemRef *EnumerationItemRef `json:"enumerationItem,omitempty" yaml:"enumerationItem,omitempty"`
	Namespace          string              `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	CreatedAt          time.Time           `json:"createdAt" yaml:"createdAt"`
	Labels             []AnomalyLabel      `json:"labels,omitempty" yaml:"labels,omitempty"`
}

// Duration returns the length of the anomaly.
func (a *Anomaly) Duration() time.Duration {
	return time.Duration(a.EndTime-a.StartTime) * time.Millisecond
}

// AddLabel appends a label.
func (a *Anomaly) AddLabel(label AnomalyLabel) {
	a.Labels = append(a.Labels, label)
}

// Clone returns an independent copy so post-processors never mutate the
// records held by an upstream result.
func (a *Anomaly) Clone() *Anomaly {
	if a == nil {
		return nil
	}
	out := *a
	out.AvgCurrentVal = cloneFloat(a.AvgCurrentVal)
	out.AvgBaselineVal = cloneFloat(a.AvgBaselineVal)
	out.LowerBound = cloneFloat(a.LowerBound)
	out.UpperBound = cloneFloat(a.UpperBound)
	if a.AlertID != nil {
		id := *a.AlertID
		out.AlertID = &id
	}
	if a.EnumerationItemRef != nil {
		ref := *a.EnumerationItemRef
		out.EnumerationItemRef = &ref
	}
	if a.Labels != nil {
		out.Labels = make([]AnomalyLabel, len(a.Labels))
		for i, label := range a.Labels {
			out.Labels[i] = label.Clone()
		}
	}
	return &out
}

// CloneAnomalies clones every anomaly in the slice.
func CloneAnomalies(in []*Anomaly) []*Anomaly {
	if in == nil {
		return nil
	}
	out := make([]*Anomaly, len(in))
	for i, a := range in {
		out[i] = a.Clone()
	}
	return out
}

// Float returns a pointer to v, for optional numeric fields.
func Float(v float64) *float64 {
	return &v
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
