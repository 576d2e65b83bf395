package domain

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestCharacterProfile_JSON(t *testing.T) {
	t.Run("CharacterProfile構造体が正しくJSON変換できるのだ", func(t *testing.T) {
		profile := CharacterProfile{
			Name:                "ミロ",
			Species:             "mouse",
			PhysicalDescription: "small gray mouse with round ears",
			Clothing:            "red scarf",
			DistinctiveFeatures: "a notch in the left ear",
		}

		data, err := json.Marshal(profile)
		if err != nil {
			t.Fatalf("Marshal失敗なのだ: %v", err)
		}

		var decoded CharacterProfile
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("Unmarshal失敗なのだ: %v", err)
		}

		if !reflect.DeepEqual(profile, decoded) {
			t.Errorf("変換前後でデータが一致しないのだ。期待: %+v, 実際: %+v", profile, decoded)
		}
	})
}

func TestParseCharacterProfiles(t *testing.T) {
	// 1. 正常系：正しいJSONからスライスが生成されること
	jsonInput := []byte(`[
		{
			"name": "ミロ",
			"species": "mouse",
			"physical_description": "small gray mouse",
			"clothing": "red scarf"
		}
	]`)

	profiles, err := ParseCharacterProfiles(jsonInput)
	if err != nil {
		t.Fatalf("正常なJSONでエラーが発生しました: %v", err)
	}
	if len(profiles) != 1 || profiles[0].Name != "ミロ" {
		t.Errorf("期待値 'ミロ', 実際の値 %+v", profiles)
	}

	// 2. 異常系：不正なJSONでエラーが返ること
	_, err = ParseCharacterProfiles([]byte(`{ invalid json }`))
	if err == nil {
		t.Error("不正なJSONでエラーが発生しませんでした")
	}
}

func TestPages_FullText(t *testing.T) {
	pages := Pages{
		{PageNumber: 1, Text: "むかしむかし、小さなネズミがいました。"},
		{PageNumber: 2, Text: "ネズミは森へ出かけました。"},
	}

	got := pages.FullText()
	want := "Page 1:\nむかしむかし、小さなネズミがいました。\n\nPage 2:\nネズミは森へ出かけました。"
	if got != want {
		t.Errorf("期待値 %q, 実際の値 %q", want, got)
	}

	t.Run("空のスライスでは空文字を返すこと", func(t *testing.T) {
		if got := (Pages{}).FullText(); got != "" {
			t.Errorf("期待値は空文字、実際の値 %q", got)
		}
	})
}

func TestCopyProfiles(t *testing.T) {
	src := []CharacterProfile{{Name: "ミロ", Species: "mouse"}}
	copied := CopyProfiles(src)

	copied[0].Name = "changed"
	if src[0].Name != "ミロ" {
		t.Error("コピー先の変更が元のスライスに影響しています")
	}

	if CopyProfiles(nil) != nil {
		t.Error("nil入力にはnilを返すべきです")
	}
}
