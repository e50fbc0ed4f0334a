package indices

import (
	"sort"

	"github.com/LASER-IDEA/white-paper-sub000/internal/chart"
	"github.com/LASER-IDEA/white-paper-sub000/internal/dataset"
	"github.com/LASER-IDEA/white-paper-sub000/pkg/contracts/domain"
)

// entityFootprint maps each entity to the regions it operates in, both in
// first-appearance order
type entityFootprint struct {
	entities    []string
	regions     []string
	regionIndex map[string]int
	operatesIn  map[string][]int
}

func footprint(ds *dataset.Dataset) entityFootprint {
	fp := entityFootprint{
		regionIndex: make(map[string]int),
		operatesIn:  make(map[string][]int),
	}
	seenPair := make(map[[2]string]bool)
	for _, r := range ds.Records() {
		idx, ok := fp.regionIndex[r.Region]
		if !ok {
			idx = len(fp.regions)
			fp.regionIndex[r.Region] = idx
			fp.regions = append(fp.regions, r.Region)
		}
		if _, ok := fp.operatesIn[r.Entity]; !ok {
			fp.entities = append(fp.entities, r.Entity)
		}
		pair := [2]string{r.Entity, r.Region}
		if !seenPair[pair] {
			seenPair[pair] = true
			fp.operatesIn[r.Entity] = append(fp.operatesIn[r.Entity], idx)
		}
	}
	return fp
}

// RegionalNetwork links regions that share operating entities. Node weight is
// sortie volume, link weight the number of shared entities, and the headline
// is graph density.
func RegionalNetwork(ds *dataset.Dataset, p Params) (Output, error) {
	fp := footprint(ds)
	volumes := sortiesBy(ds, byRegion)

	nodes := make([]domain.GraphNode, len(fp.regions))
	for i, region := range fp.regions {
		nodes[i] = domain.GraphNode{ID: region, Weight: volumes.values[region]}
	}

	shared := make(map[[2]int]float64)
	for _, entity := range fp.entities {
		regions := append([]int(nil), fp.operatesIn[entity]...)
		sort.Ints(regions)
		for i := 0; i < len(regions); i++ {
			for j := i + 1; j < len(regions); j++ {
				shared[[2]int{regions[i], regions[j]}]++
			}
		}
	}

	pairs := make([][2]int, 0, len(shared))
	for pair := range shared {
		pairs = append(pairs, pair)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})

	links := make([]domain.GraphLink, len(pairs))
	for i, pair := range pairs {
		links[i] = domain.GraphLink{
			Source: fp.regions[pair[0]],
			Target: fp.regions[pair[1]],
			Weight: shared[pair],
		}
	}

	n := float64(len(nodes))
	density := 0.0
	if n >= 2 {
		density = float64(len(links)) / (n * (n - 1) / 2)
	}

	return Output{
		Value: density,
		Raw:   chart.GraphData{Nodes: nodes, Links: links},
		KeyMetrics: []domain.KeyMetric{
			metric("regions", n, "regions"),
			metric("links", float64(len(links)), "links"),
		},
	}, nil
}

// CrossRegionIntegration is the share of entities active in more than one
// region, with entities ranked by region count
func CrossRegionIntegration(ds *dataset.Dataset, p Params) (Output, error) {
	fp := footprint(ds)

	items := make([]domain.CategoryValue, len(fp.entities))
	multi := 0
	maxRegions := 0
	for i, entity := range fp.entities {
		count := len(fp.operatesIn[entity])
		items[i] = domain.CategoryValue{Category: entity, Value: float64(count)}
		if count > 1 {
			multi++
		}
		if count > maxRegions {
			maxRegions = count
		}
	}

	return Output{
		Value: share(float64(multi), float64(len(fp.entities))),
		Raw:   chart.Ranking{Items: items},
		KeyMetrics: []domain.KeyMetric{
			metric("multi_region_entities", float64(multi), "entities"),
			metric("max_regions_per_entity", float64(maxRegions), "regions"),
		},
	}, nil
}
