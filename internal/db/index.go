package db

import (
	"errors"
	"strconv"
)

// DistanceMetric used by FT.SEARCH vector similarity queries.
type DistanceMetric string

const (
	// DistanceL2 is Euclidean distance.
	DistanceL2 DistanceMetric = "L2"
	// DistanceCosine is cosine distance.
	DistanceCosine DistanceMetric = "COSINE"
)

// VectorAlgorithm selects the indexing algorithm for vector fields in FT.CREATE.
type VectorAlgorithm string

const (
	// VectorHNSW uses the HNSW algorithm.
	VectorHNSW VectorAlgorithm = "HNSW"
	// VectorFlat uses the FLAT (brute-force) algorithm.
	VectorFlat VectorAlgorithm = "FLAT"
)

// IndexFieldType enumerates supported FT index field types.
type IndexFieldType int

const (
	// IndexFieldTag is a tag field.
	IndexFieldTag IndexFieldType = iota
	// IndexFieldNumeric is a numeric field.
	IndexFieldNumeric
	// IndexFieldVector is a vector field.
	IndexFieldVector
)

// IndexField describes a single field in an FT index schema.
type IndexField struct {
	Name string
	Type IndexFieldType

	// VECTOR options
	VectorDim         int
	VectorAlgo        VectorAlgorithm
	VectorDistance    DistanceMetric
	VectorM           int
	VectorEFConstruct int
}

// IndexDefinition describes an FT index over hash keys with the given prefixes.
type IndexDefinition struct {
	Name     string
	Prefixes []string
	Fields   []IndexField
}

// BuildCreateArgs renders the FT.CREATE argument list for a definition.
func BuildCreateArgs(def *IndexDefinition) ([]string, error) {
	if def.Name == "" {
		return nil, errors.New("index name is required")
	}
	if len(def.Fields) == 0 {
		return nil, errors.New("at least one field is required")
	}

	args := []string{def.Name, "ON", "HASH"}

	if len(def.Prefixes) > 0 {
		args = append(args, "PREFIX", strconv.Itoa(len(def.Prefixes)))
		args = append(args, def.Prefixes...)
	}

	args = append(args, "SCHEMA")

	for i := range def.Fields {
		fieldArgs, err := buildFieldArgs(&def.Fields[i])
		if err != nil {
			return nil, err
		}
		args = append(args, fieldArgs...)
	}

	return args, nil
}

func buildFieldArgs(f *IndexField) ([]string, error) {
	if f.Name == "" {
		return nil, errors.New("field name is required")
	}

	args := []string{f.Name}

	switch f.Type {
	case IndexFieldTag:
		args = append(args, "TAG")

	case IndexFieldNumeric:
		args = append(args, "NUMERIC")

	case IndexFieldVector:
		vectorArgs, err := buildVectorFieldArgs(f)
		if err != nil {
			return nil, err
		}
		args = append(args, vectorArgs...)

	default:
		return nil, errors.New("unknown field type")
	}

	return args, nil
}

func buildVectorFieldArgs(f *IndexField) ([]string, error) {
	if f.VectorDim <= 0 {
		return nil, errors.New("vector DIM must be positive")
	}

	algo := f.VectorAlgo
	if algo == "" {
		algo = VectorHNSW
	}

	distance := f.VectorDistance
	if distance == "" {
		distance = DistanceCosine
	}

	attrs := []string{
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(f.VectorDim),
		"DISTANCE_METRIC", string(distance),
	}

	if algo == VectorHNSW {
		if f.VectorM > 0 {
			attrs = append(attrs, "M", strconv.Itoa(f.VectorM))
		}
		if f.VectorEFConstruct > 0 {
			attrs = append(attrs, "EF_CONSTRUCTION", strconv.Itoa(f.VectorEFConstruct))
		}
	}

	result := make([]string, 0, 3+len(attrs))
	result = append(result, "VECTOR", string(algo), strconv.Itoa(len(attrs)))
	result = append(result, attrs...)

	return result, nil
}
