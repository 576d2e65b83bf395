package domain

import (
	"encoding/json"
	"fmt"
)

// Character は物語の本文中に登場するキャラクターへの簡易参照です。
type Character struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Role        string `json:"role,omitempty"` // 例: "protagonist", "supporting"
}

// CharacterProfile は挿絵の一貫性維持に必要な視覚情報の完全なプロフィールです。
// 任意項目は空文字のままプロンプトから省略されます。
type CharacterProfile struct {
	Name                string `json:"name"`
	Species             string `json:"species"`
	PhysicalDescription string `json:"physical_description"`
	Clothing            string `json:"clothing,omitempty"`
	DistinctiveFeatures string `json:"distinctive_features,omitempty"`
	PersonalityTraits   string `json:"personality_traits,omitempty"`
}

// String はキャラクターの情報を文字列で返すのだ。
func (c Character) String() string {
	return fmt.Sprintf("%s (%s)", c.Name, c.Description)
}

// ParseCharacterProfiles はJSONバイト列からプロフィールのスライスをパースして返します。
// この関数はステートレスであり、キャッシュを行いません。
func ParseCharacterProfiles(data []byte) ([]CharacterProfile, error) {
	var profiles []CharacterProfile
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("キャラクタープロフィールのJSONパースに失敗しました: %w", err)
	}
	return profiles, nil
}

// CopyProfiles はプロフィールスライスの防御的コピーを返す内部向けヘルパーです。
func CopyProfiles(src []CharacterProfile) []CharacterProfile {
	if src == nil {
		return nil
	}
	copied := make([]CharacterProfile, len(src))
	copy(copied, src)
	return copied
}
