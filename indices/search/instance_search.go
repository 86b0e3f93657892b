package search

import (
	"encoding/json"
	"fmt"
	"strings"

	"caseflow/client/es"
	"caseflow/domain/instance"
	"caseflow/indices"
	"caseflow/session"
)

var (
	SearchInstancesFunc = SearchInstances
)

type InstanceSearchQuery struct {
	Definition string `form:"definition"`
	Step       string `form:"step"`
	// Text matches against the instance's Title property.
	Text string `form:"text"`
}

func SearchInstances(q InstanceSearchQuery, s *session.Session) ([]instance.WorkflowInstance, error) {
	visible := s.VisibleDefinitions()
	if visible != nil && len(visible) == 0 {
		return []instance.WorkflowInstance{}, nil
	}

	filters := make([]es.H, 0, 4)
	if visible != nil {
		filters = append(filters, es.H{"terms": es.H{"definition": visible}})
	}
	if q.Definition != "" {
		filters = append(filters, es.H{"term": es.H{"definition": q.Definition}})
	}
	if q.Step != "" {
		filters = append(filters, es.H{"term": es.H{"currentStep": q.Step}})
	}
	if q.Text != "" {
		filters = append(filters, es.H{"match": es.H{"properties.Title": es.H{"query": q.Text, "operator": "AND"}}})
	}

	sorts := []es.H{{"createTime": es.H{"order": "desc"}}}

	root := es.H{"bool": es.H{"filter": filters}}
	r, err := es.SearchFunc(indices.InstanceIndexName, es.H{"size": 10000, "query": root, "sort": sorts}, s)
	if err != nil {
		return nil, err
	}

	results := make([]instance.WorkflowInstance, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		inst := instance.WorkflowInstance{}
		if err := json.NewDecoder(strings.NewReader(string(hit.Source))).Decode(&inst); err != nil {
			return nil, fmt.Errorf(string(hit.Source))
		}
		results = append(results, inst)
	}
	return results, nil
}
