package quiz

import (
	"encoding/json"
	"fmt"
)

// ItemType is the wire discriminant for quiz items. The set is closed;
// decoding an unknown tag is an error.
type ItemType string

const (
	TypeFillSpace      ItemType = "QUIZ_FILL_SPACE"
	TypeMultipleChoice ItemType = "QUIZ_MULTIPLE_CHOICE"
	TypeOpen           ItemType = "QUIZ_OPEN"
	TypePoll           ItemType = "QUIZ_POLL"
	TypeTrueFalse      ItemType = "QUIZ_TRUE_FALSE"
	TypeWordCloud      ItemType = "QUIZ_WORD_CLOUD"

	TypeSlideTitle1     ItemType = "SLIDE_TITLE_1"
	TypeSlideTitle2     ItemType = "SLIDE_TITLE_2"
	TypeSlideText1      ItemType = "SLIDE_TEXT_1"
	TypeSlideText2      ItemType = "SLIDE_TEXT_2"
	TypeSlideTextMedia1 ItemType = "SLIDE_TEXT_MEDIA_1"
	TypeSlideTextMedia2 ItemType = "SLIDE_TEXT_MEDIA_2"
)

// ItemStatus is the optional live status of an item.
type ItemStatus string

const (
	StatusPending ItemStatus = "PENDING"
	StatusActive  ItemStatus = "ACTIVE"
	StatusClosed  ItemStatus = "CLOSED"
)

// Item is one slide or question of a quiz. Only quiz-type variants
// accept answers (Interactive reports true).
type Item interface {
	ItemType() ItemType
	ItemPosition() int
	Interactive() bool
}

// FillSpace is a fill-in-the-blank question.
type FillSpace struct {
	Type            ItemType            `json:"type"`
	Position        int                 `json:"position"`
	ContentQuestion string              `json:"contentQuestion"`
	Answers         []string            `json:"answers"`
	TimerSeconds    int                 `json:"timerSeconds"`
	Reward          int                 `json:"reward"`
	AnswersLive     map[string][]string `json:"answersLive,omitempty"`
	Status          ItemStatus          `json:"status,omitempty"`
}

func (i FillSpace) ItemType() ItemType { return TypeFillSpace }
func (i FillSpace) ItemPosition() int  { return i.Position }
func (i FillSpace) Interactive() bool  { return true }

// MultipleChoice is a multiple-choice question with fixed alternatives.
type MultipleChoice struct {
	Type            ItemType            `json:"type"`
	Position        int                 `json:"position"`
	ContentQuestion string              `json:"contentQuestion"`
	Alternatives    []string            `json:"alternatives"`
	Answers         []string            `json:"answers"`
	TimerSeconds    int                 `json:"timerSeconds"`
	Reward          int                 `json:"reward"`
	AnswersLive     map[string][]string `json:"answersLive,omitempty"`
	Status          ItemStatus          `json:"status,omitempty"`
}

func (i MultipleChoice) ItemType() ItemType { return TypeMultipleChoice }
func (i MultipleChoice) ItemPosition() int  { return i.Position }
func (i MultipleChoice) Interactive() bool  { return true }

// Open is a free-text question bounded by a character budget.
type Open struct {
	Type               ItemType            `json:"type"`
	Position           int                 `json:"position"`
	ContentQuestion    string              `json:"contentQuestion"`
	QuantityCharacters int                 `json:"quantityCharacters"`
	Answers            []string            `json:"answers"`
	TimerSeconds       int                 `json:"timerSeconds"`
	Reward             int                 `json:"reward"`
	AnswersLive        map[string][]string `json:"answersLive,omitempty"`
	Status             ItemStatus          `json:"status,omitempty"`
}

func (i Open) ItemType() ItemType { return TypeOpen }
func (i Open) ItemPosition() int  { return i.Position }
func (i Open) Interactive() bool  { return true }

// Poll is an opinion question with no correct answer and no reward.
type Poll struct {
	Type            ItemType            `json:"type"`
	Position        int                 `json:"position"`
	ContentQuestion string              `json:"contentQuestion"`
	Answers         []string            `json:"answers"`
	TimerSeconds    int                 `json:"timerSeconds"`
	AnswersLive     map[string][]string `json:"answersLive,omitempty"`
	Status          ItemStatus          `json:"status,omitempty"`
}

func (i Poll) ItemType() ItemType { return TypePoll }
func (i Poll) ItemPosition() int  { return i.Position }
func (i Poll) Interactive() bool  { return true }

// TrueFalse is a binary question.
type TrueFalse struct {
	Type            ItemType            `json:"type"`
	Position        int                 `json:"position"`
	ContentQuestion string              `json:"contentQuestion"`
	Answers         []string            `json:"answers"`
	TimerSeconds    int                 `json:"timerSeconds"`
	Reward          int                 `json:"reward"`
	AnswersLive     map[string][]string `json:"answersLive,omitempty"`
	Status          ItemStatus          `json:"status,omitempty"`
}

func (i TrueFalse) ItemType() ItemType { return TypeTrueFalse }
func (i TrueFalse) ItemPosition() int  { return i.Position }
func (i TrueFalse) Interactive() bool  { return true }

// WordCloud collects short free-text answers rendered as a cloud.
type WordCloud struct {
	Type               ItemType            `json:"type"`
	Position           int                 `json:"position"`
	ContentQuestion    string              `json:"contentQuestion"`
	QuantityCharacters int                 `json:"quantityCharacters"`
	Answers            []string            `json:"answers"`
	TimerSeconds       int                 `json:"timerSeconds"`
	Reward             int                 `json:"reward"`
	AnswersLive        map[string][]string `json:"answersLive,omitempty"`
	Status             ItemStatus          `json:"status,omitempty"`
}

func (i WordCloud) ItemType() ItemType { return TypeWordCloud }
func (i WordCloud) ItemPosition() int  { return i.Position }
func (i WordCloud) Interactive() bool  { return true }

// SlideTitle1 is a title-only slide.
type SlideTitle1 struct {
	Type         ItemType `json:"type"`
	Position     int      `json:"position"`
	ContentTitle string   `json:"contentTitle"`
}

func (i SlideTitle1) ItemType() ItemType { return TypeSlideTitle1 }
func (i SlideTitle1) ItemPosition() int  { return i.Position }
func (i SlideTitle1) Interactive() bool  { return false }

// SlideTitle2 is a title slide with a description line.
type SlideTitle2 struct {
	Type               ItemType `json:"type"`
	Position           int      `json:"position"`
	ContentTitle       string   `json:"contentTitle"`
	ContentDescription string   `json:"contentDescription"`
}

func (i SlideTitle2) ItemType() ItemType { return TypeSlideTitle2 }
func (i SlideTitle2) ItemPosition() int  { return i.Position }
func (i SlideTitle2) Interactive() bool  { return false }

// SlideText1 is a single-column text slide.
type SlideText1 struct {
	Type                ItemType `json:"type"`
	Position            int      `json:"position"`
	ContentHeader       string   `json:"contentHeader"`
	ContentSubHeaderOne string   `json:"contentSubHeaderOne"`
	ContentTextOne      string   `json:"contentTextOne"`
}

func (i SlideText1) ItemType() ItemType { return TypeSlideText1 }
func (i SlideText1) ItemPosition() int  { return i.Position }
func (i SlideText1) Interactive() bool  { return false }

// SlideText2 is a two-column text slide.
type SlideText2 struct {
	Type                ItemType `json:"type"`
	Position            int      `json:"position"`
	ContentHeader       string   `json:"contentHeader"`
	ContentSubHeaderOne string   `json:"contentSubHeaderOne"`
	ContentTextOne      string   `json:"contentTextOne"`
	ContentSubHeaderTwo string   `json:"contentSubHeaderTwo"`
	ContentTextTwo      string   `json:"contentTextTwo"`
}

func (i SlideText2) ItemType() ItemType { return TypeSlideText2 }
func (i SlideText2) ItemPosition() int  { return i.Position }
func (i SlideText2) Interactive() bool  { return false }

// SlideTextMedia1 is a text slide with one media block.
type SlideTextMedia1 struct {
	Type            ItemType `json:"type"`
	Position        int      `json:"position"`
	ContentHeader   string   `json:"contentHeader"`
	ContentTextOne  string   `json:"contentTextOne"`
	ContentMediaOne string   `json:"contentMediaOne"`
}

func (i SlideTextMedia1) ItemType() ItemType { return TypeSlideTextMedia1 }
func (i SlideTextMedia1) ItemPosition() int  { return i.Position }
func (i SlideTextMedia1) Interactive() bool  { return false }

// SlideTextMedia2 is a two-column slide mixing text and media.
type SlideTextMedia2 struct {
	Type                ItemType `json:"type"`
	Position            int      `json:"position"`
	ContentSubHeaderOne string   `json:"contentSubHeaderOne"`
	ContentTextOne      string   `json:"contentTextOne"`
	ContentMediaOne     string   `json:"contentMediaOne"`
	ContentSubHeaderTwo string   `json:"contentSubHeaderTwo"`
	ContentTextTwo      string   `json:"contentTextTwo"`
	ContentMediaTwo     string   `json:"contentMediaTwo"`
}

func (i SlideTextMedia2) ItemType() ItemType { return TypeSlideTextMedia2 }
func (i SlideTextMedia2) ItemPosition() int  { return i.Position }
func (i SlideTextMedia2) Interactive() bool  { return false }

// DecodeItem decodes one item from its JSON form, dispatching on the
// "type" discriminant.
func DecodeItem(raw json.RawMessage) (Item, error) {
	var probe struct {
		Type ItemType `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("item discriminant: %w", err)
	}

	decode := func(dst Item) (Item, error) {
		// dst is a pointer to the concrete struct; unmarshal in place.
		if err := json.Unmarshal(raw, dst); err != nil {
			return nil, fmt.Errorf("item %s: %w", probe.Type, err)
		}
		return dst, nil
	}

	switch probe.Type {
	case TypeFillSpace:
		return decode(&FillSpace{})
	case TypeMultipleChoice:
		return decode(&MultipleChoice{})
	case TypeOpen:
		return decode(&Open{})
	case TypePoll:
		return decode(&Poll{})
	case TypeTrueFalse:
		return decode(&TrueFalse{})
	case TypeWordCloud:
		return decode(&WordCloud{})
	case TypeSlideTitle1:
		return decode(&SlideTitle1{})
	case TypeSlideTitle2:
		return decode(&SlideTitle2{})
	case TypeSlideText1:
		return decode(&SlideText1{})
	case TypeSlideText2:
		return decode(&SlideText2{})
	case TypeSlideTextMedia1:
		return decode(&SlideTextMedia1{})
	case TypeSlideTextMedia2:
		return decode(&SlideTextMedia2{})
	default:
		return nil, fmt.Errorf("unknown item type: %q", probe.Type)
	}
}
