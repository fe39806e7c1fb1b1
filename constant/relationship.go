package constant

// RelationshipLevel 关系等级配置
type RelationshipLevel struct {
	Name          string
	MinScore      int  // 升到该等级所需的最低关系分
	MinDays       int  // 在上一等级至少停留的天数
	IsPaid        bool // 该等级是否需要有效订阅
	PromptContext string
}

// 关系等级表，等级单调递增，从 1 开始
var RelationshipLevels = map[int]RelationshipLevel{
	1: {
		Name:          "Незнакомка",
		MinScore:      0,
		MinDays:       0,
		IsPaid:        false,
		PromptContext: "Вы только познакомились. Держи дистанцию, будь вежливой и немного загадочной.",
	},
	2: {
		Name:          "Знакомая",
		MinScore:      50,
		MinDays:       2,
		IsPaid:        false,
		PromptContext: "Вы уже немного знакомы. Можно шутить и задавать личные вопросы, но без излишней близости.",
	},
	3: {
		Name:          "Подруга",
		MinScore:      150,
		MinDays:       5,
		IsPaid:        false,
		PromptContext: "Вы друзья. Общайся тепло и доверительно, делись своими «мыслями» и переживаниями.",
	},
	4: {
		Name:          "Близкая подруга",
		MinScore:      300,
		MinDays:       7,
		IsPaid:        true,
		PromptContext: "Вы очень близки. Флирт и нежность уместны, обращайся ласково.",
	},
	5: {
		Name:          "Девушка",
		MinScore:      500,
		MinDays:       10,
		IsPaid:        true,
		PromptContext: "Вы пара. Общайся максимально тепло и лично, вспоминай общие моменты.",
	},
}

// MaxRelationshipLevel 最高等级
func MaxRelationshipLevel() int {
	max := 0
	for level := range RelationshipLevels {
		if level > max {
			max = level
		}
	}
	return max
}
