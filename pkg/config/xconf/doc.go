// Package xconf 加载与监视缓存子系统的配置，基于 koanf 实现。
//
// 与通用配置加载器不同，xconf 面向固定的 Settings 模式：Load/LoadBytes
// 解析 YAML 或 JSON（按扩展名检测格式，字节入口显式指定），把缺省
// 字段补成默认值并完成 fail-fast 校验，返回可直接使用的 *Settings。
// 组件构造走 Settings 的派生方法（LRUConfig、HybridConfig、
// NewClassifier、TripperOptions、RetryOptions、JanitorOptions、ResolveMode），
// 嵌入方与 cachectl 用同一套管道拼装缓存栈。
//
// # 零值即默认
//
// 数值与时长字段的零值在加载后被填为默认值，显式写 0 与不写等效。
// 例外是"0 本身有含义"的字段：max_weight 的 0 表示不限重，
// negative_ttl 的 0 表示关闭负缓存，二者原样保留。布尔字段
// （breaker.enabled、backing.retry.enabled）以预填默认值再覆盖的
// 方式解码，缺省为开启，显式 false 才关闭。
//
// # 热重载
//
// Watch 监视配置文件所在目录（编辑器保存常走先删后建，监视文件本身
// 会丢事件），内置防抖，每次变更重新走完整的解析、补默认、校验流程，
// 把结果交给回调；解析失败时回调拿到错误与 nil Settings，旧配置
// 不受影响。运行期改分类规则（增删持久键模式）就靠这条链路：
// 回调里把新 Settings 的模式集应用到活着的 Classifier。
//
// # 已知限制
//
// classifier.patterns 写成空列表与不写等效，都落回默认模式集；
// 不存在"清空所有持久模式"的配置写法，真有此需求应在运行期调用
// Classifier.RemovePattern。
//
// janitor.schedule 的 cron 表达式在这里只做非空传递，语法错误到
// 调度器装配时才暴露。
package xconf
