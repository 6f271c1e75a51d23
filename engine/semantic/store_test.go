package semantic

import (
	"testing"

	pb "github.com/qdrant/go-client/qdrant"
)

func TestToPayloadTypes(t *testing.T) {
	p := toPayload(map[string]any{
		"source_url":  "https://a.example/p",
		"chunk_index": 3,
		"score":       0.5,
		"fresh":       true,
		"other":       []int{1},
	})

	if p["source_url"].GetStringValue() != "https://a.example/p" {
		t.Error("string payload mismatch")
	}
	if p["chunk_index"].GetIntegerValue() != 3 {
		t.Error("int payload mismatch")
	}
	if p["score"].GetDoubleValue() != 0.5 {
		t.Error("float payload mismatch")
	}
	if !p["fresh"].GetBoolValue() {
		t.Error("bool payload mismatch")
	}
	if p["other"].GetStringValue() == "" {
		t.Error("fallback payload should be stringified")
	}
}

func TestFromScoredPoint(t *testing.T) {
	hit := &pb.ScoredPoint{
		Id:    &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: "abc"}},
		Score: 0.91,
		Payload: map[string]*pb.Value{
			"body":        {Kind: &pb.Value_StringValue{StringValue: "chunk text"}},
			"source_url":  {Kind: &pb.Value_StringValue{StringValue: "https://a.example/p"}},
			"head":        {Kind: &pb.Value_StringValue{StringValue: "Title"}},
			"chunk_index": {Kind: &pb.Value_IntegerValue{IntegerValue: 7}},
			"extra":       {Kind: &pb.Value_StringValue{StringValue: "x"}},
		},
	}

	sr := fromScoredPoint(hit)
	if sr.ID != "abc" || sr.Score != 0.91 {
		t.Fatalf("unexpected id/score %+v", sr)
	}
	if sr.Body != "chunk text" || sr.SourceURL != "https://a.example/p" || sr.Head != "Title" || sr.ChunkIndex != 7 {
		t.Fatalf("unexpected payload mapping %+v", sr)
	}
	if sr.Meta["extra"] != "x" {
		t.Fatalf("unexpected meta %v", sr.Meta)
	}
}

func TestFieldMatch(t *testing.T) {
	c := fieldMatch("source_url", "https://a.example/p")
	f := c.GetField()
	if f.GetKey() != "source_url" {
		t.Fatalf("unexpected key %s", f.GetKey())
	}
	if f.GetMatch().GetKeyword() != "https://a.example/p" {
		t.Fatalf("unexpected keyword %s", f.GetMatch().GetKeyword())
	}
}
