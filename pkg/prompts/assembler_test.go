package prompts

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/shouni/go-storybook-kit/pkg/domain"
)

func testProfiles() []domain.CharacterProfile {
	return []domain.CharacterProfile{
		{
			Name:                "Milo",
			Species:             "mouse",
			PhysicalDescription: "small gray mouse with round ears",
			Clothing:            "red scarf",
			DistinctiveFeatures: "a notch in the left ear",
		},
		{
			Name:                "Luna",
			Species:             "owl",
			PhysicalDescription: "white owl with golden eyes",
		},
	}
}

func TestAssembler_BuildImagePrompt(t *testing.T) {
	a := NewAssembler("")

	t.Run("同一の入力からはバイト単位で同一の出力が得られること", func(t *testing.T) {
		profiles := testProfiles()
		first := a.BuildImagePrompt("Milo crosses the river", profiles, "watercolor", nil, nil)
		second := a.BuildImagePrompt("Milo crosses the river", profiles, "watercolor", nil, nil)
		if first != second {
			t.Errorf("決定論的ではありません。\n1回目: %q\n2回目: %q", first, second)
		}
	})

	t.Run("画風→キャラクター→シーンの順で組み立てられること", func(t *testing.T) {
		prompt := a.BuildImagePrompt("Milo crosses the river", testProfiles(), "watercolor", nil, nil)

		styleIdx := strings.Index(prompt, "watercolor")
		charIdx := strings.Index(prompt, "Milo (a mouse")
		sceneIdx := strings.Index(prompt, "in this scene:")

		if styleIdx < 0 || charIdx < 0 || sceneIdx < 0 {
			t.Fatalf("必須ブロックが欠けています: %q", prompt)
		}
		if !(styleIdx < charIdx && charIdx < sceneIdx) {
			t.Errorf("組み立て順が固定されていません: style=%d char=%d scene=%d", styleIdx, charIdx, sceneIdx)
		}
	})

	t.Run("キャラクター0人でもエラーにならずブロックが省略されること", func(t *testing.T) {
		prompt := a.BuildImagePrompt("a quiet forest at dawn", nil, "watercolor", nil, nil)
		if prompt == "" {
			t.Fatal("プロンプトが空です")
		}
		if strings.Contains(prompt, "(a ") {
			t.Errorf("キャラクターブロックが含まれています: %q", prompt)
		}
	})

	t.Run("任意項目が未設定ならプレースホルダを出力しないこと", func(t *testing.T) {
		profiles := []domain.CharacterProfile{
			{Name: "Luna", Species: "owl", PhysicalDescription: "white owl"},
		}
		prompt := a.BuildImagePrompt("Luna flies", profiles, "cartoon", nil, nil)
		for _, banned := range []string{"unknown", "n/a", "none", "placeholder"} {
			if strings.Contains(strings.ToLower(prompt), banned) {
				t.Errorf("プレースホルダ %q が含まれています: %q", banned, prompt)
			}
		}
	})

	t.Run("3人目以降のキャラクターは含めないこと", func(t *testing.T) {
		profiles := append(testProfiles(), domain.CharacterProfile{
			Name: "Rex", Species: "dog", PhysicalDescription: "brown dog",
		})
		prompt := a.BuildImagePrompt("everyone plays", profiles, "cartoon", nil, nil)
		if strings.Contains(prompt, "Rex") {
			t.Errorf("3人目のキャラクターが含まれています: %q", prompt)
		}
	})

	t.Run("上限文字数を超えないこと", func(t *testing.T) {
		long := strings.Repeat("a very long scene description ", 50)
		prompt := a.BuildImagePrompt(long, testProfiles(), "watercolor", nil, nil)
		if len(prompt) > maxPromptLength {
			t.Errorf("上限 %d を超えています: %d", maxPromptLength, len(prompt))
		}
	})

	t.Run("マルチバイト文字のシーンを壊さずに丸めること", func(t *testing.T) {
		scene := strings.Repeat("ル", 80)
		prompt := a.BuildImagePrompt(scene, nil, "watercolor", nil, nil)
		if !utf8.ValidString(prompt) {
			t.Errorf("不正なUTF-8が出力されました: %q", prompt)
		}
	})

	t.Run("全体丸めでもマルチバイト文字を壊さないこと", func(t *testing.T) {
		scene := strings.Repeat("竜の子が 空を 飛ぶ ", 100)
		prompt := a.BuildImagePrompt(scene, testProfiles(), "水彩", nil, nil)
		if !utf8.ValidString(prompt) {
			t.Errorf("不正なUTF-8が出力されました: %q", prompt)
		}
		if got := len([]rune(prompt)); got > maxPromptLength {
			t.Errorf("上限 %d 文字を超えています: %d", maxPromptLength, got)
		}
	})

	t.Run("アートバイブルのスタイルが引数のスタイルを上書きすること", func(t *testing.T) {
		bible := &domain.ArtBible{ArtStyle: "gouache", Prompt: "soft pastels"}
		prompt := a.BuildImagePrompt("a hill", nil, "cartoon", bible, nil)
		if !strings.Contains(prompt, "gouache") {
			t.Errorf("アートバイブルのスタイルが使われていません: %q", prompt)
		}
	})
}

func TestAssembler_BuildPrimingPrompt(t *testing.T) {
	a := NewAssembler("")
	bible := domain.ArtBible{ArtStyle: "watercolor", Prompt: "soft washes, warm light"}

	prompt := a.BuildPrimingPrompt(bible, testProfiles())

	if !strings.Contains(prompt, "watercolor") {
		t.Error("画風が含まれていません")
	}
	if !strings.Contains(prompt, "Milo") || !strings.Contains(prompt, "Luna") {
		t.Error("キャラクターが含まれていません")
	}

	t.Run("決定論的であること", func(t *testing.T) {
		if a.BuildPrimingPrompt(bible, testProfiles()) != prompt {
			t.Error("同一入力から異なるプライミングプロンプトが生成されました")
		}
	})

	t.Run("登場順が保持されること", func(t *testing.T) {
		if strings.Index(prompt, "Milo") > strings.Index(prompt, "Luna") {
			t.Error("キャラクターブロックが登場順になっていません")
		}
	})
}

func TestAssembler_BuildStoryPrompt(t *testing.T) {
	a := NewAssembler("")
	meta := domain.StoryMetadata{
		Title:               "The Brave Little Mouse",
		Language:            "English",
		Complexity:          "simple",
		VocabularyDiversity: "basic",
		AgeGroup:            "3-5",
		NumPages:            3,
	}

	prompt := a.BuildStoryPrompt(meta, "courage", "")

	if !strings.Contains(prompt, "exactly 3 pages") {
		t.Errorf("ページ数の指定が含まれていません: %q", prompt)
	}
	if !strings.Contains(prompt, "Theme: courage.") {
		t.Error("テーマが含まれていません")
	}
	if !strings.Contains(prompt, "Page X:") {
		t.Error("ページ区切りの形式指定が含まれていません")
	}
	if strings.Contains(prompt, "Genre:") {
		t.Error("未指定のジャンルが出力されています")
	}
}

func TestAssembler_BuildArtBiblePrompt(t *testing.T) {
	a := NewAssembler("")
	bible := a.BuildArtBiblePrompt("watercolor", "adventure", "The Brave Little Mouse", "")

	if bible.ArtStyle != "watercolor" {
		t.Errorf("期待値 'watercolor', 実際の値 %q", bible.ArtStyle)
	}
	if !strings.Contains(bible.Prompt, "The Brave Little Mouse") {
		t.Error("タイトルがプロンプトに含まれていません")
	}
	if !strings.Contains(bible.Prompt, "No characters") {
		t.Error("キャラクター除外の指示が含まれていません")
	}
}

func TestAssembler_BuildCharacterReferencePrompt(t *testing.T) {
	a := NewAssembler("")
	profile := testProfiles()[0]

	t.Run("三面図ありの場合", func(t *testing.T) {
		ref := a.BuildCharacterReferencePrompt(profile, "watercolor", true)
		if ref.CharacterName != "Milo" {
			t.Errorf("期待値 'Milo', 実際の値 %q", ref.CharacterName)
		}
		if !strings.Contains(ref.Prompt, "turnaround") {
			t.Error("三面図の指示が含まれていません")
		}
	})

	t.Run("三面図なしの場合", func(t *testing.T) {
		ref := a.BuildCharacterReferencePrompt(profile, "watercolor", false)
		if strings.Contains(ref.Prompt, "turnaround") {
			t.Error("三面図の指示が含まれるべきではありません")
		}
	})
}

func TestSmartTruncate(t *testing.T) {
	t.Run("単語の途中で切らないこと", func(t *testing.T) {
		got := smartTruncate("small gray mouse with round ears", 20)
		if strings.HasSuffix(got, " ") || got != "small gray mouse" {
			t.Errorf("期待値 'small gray mouse', 実際の値 %q", got)
		}
	})

	t.Run("上限以下の文字列はそのまま返すこと", func(t *testing.T) {
		if got := smartTruncate("short", 20); got != "short" {
			t.Errorf("期待値 'short', 実際の値 %q", got)
		}
	})

	t.Run("空白がない場合は上限で切ること", func(t *testing.T) {
		if got := smartTruncate("aaaaaaaaaa", 5); got != "aaaaa" {
			t.Errorf("期待値 'aaaaa', 実際の値 %q", got)
		}
	})

	t.Run("マルチバイト文字を途中で切らないこと", func(t *testing.T) {
		got := smartTruncate("ふわふわの白いうさぎ", 5)
		if got != "ふわふわの" {
			t.Errorf("期待値 'ふわふわの', 実際の値 %q", got)
		}
		if !utf8.ValidString(got) {
			t.Errorf("不正なUTF-8が出力されました: %q", got)
		}
	})
}
