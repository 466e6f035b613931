package wire

// Selector identifies one capability operation within a handle kind's
// dispatch table. Selectors are partitioned into ranges by kind so a
// misrouted call (wrong handle, wrong selector) is easy to spot in a
// trace rather than silently aliasing an unrelated operation.
const (
	SelDatabaseOpen uint32 = 1000 + iota
	SelDatabaseFind
	SelDatabaseIndexByID
	SelDatabaseRename
	SelDatabaseDeleteIndex
	SelDatabaseNewTemporaryIndex
	SelDatabaseRegistryByName
	SelDatabaseRegistryByID
	SelDatabaseNewTransaction
	SelDatabaseBogusTransaction
	SelDatabaseNewSorter
	SelDatabasePreallocate
	SelDatabaseCapacityLimit
	SelDatabaseSetCapacityLimit
	SelDatabaseBeginSnapshot
	SelDatabaseCreateCachePrimer
	SelDatabaseApplyCachePrimer
	SelDatabaseStats
	SelDatabaseFlush
	SelDatabaseSync
	SelDatabaseCheckpoint
	SelDatabaseCompactFile
	SelDatabaseVerify
	SelDatabaseIsLeader
	SelDatabaseUponLeader
	SelDatabaseFailover
	SelDatabaseClose
	SelDatabaseCloseWithCause
	SelDatabaseIsClosed
	SelDatabaseShutdown
	SelDatabaseRegisterObserver
)

const (
	SelViewOrdering uint32 = 2000 + iota
	SelViewNewCursor
	SelViewNewAccessor
	SelViewNewTransaction
	SelViewIsEmpty
	SelViewCount
	SelViewLoad
	SelViewExists
	SelViewStore
	SelViewExchange
	SelViewInsert
	SelViewReplace
	SelViewUpdate
	SelViewUpdateWithOld
	SelViewDelete
	SelViewRemove
	SelViewTouch
	SelViewLockShared
	SelViewTryLockShared
	SelViewLockUpgradable
	SelViewTryLockUpgradable
	SelViewLockExclusive
	SelViewTryLockExclusive
	SelViewLockCheck
	SelViewIsUnmodifiable
	SelViewIsModifyAtomic
)

const (
	SelIndexID uint32 = 2500 + iota
	SelIndexName
	SelIndexAsTable
	SelIndexEvict
	SelIndexAnalyze
	SelIndexVerify
	SelIndexClose
	SelIndexDrop
	SelIndexIsClosed
)

const (
	SelCursorOrdering uint32 = 3000 + iota
	SelCursorKey
	SelCursorLink
	SelCursorRegister
	SelCursorUnregister
	SelCursorValue
	SelCursorAutoload
	SelCursorSetAutoload
	SelCursorCompareKeyTo
	SelCursorFirst
	SelCursorLast
	SelCursorSkip
	SelCursorNext
	SelCursorPrev
	SelCursorFind
	SelCursorRandom
	SelCursorExists
	SelCursorLock
	SelCursorLoad
	SelCursorStore
	SelCursorDelete
	SelCursorCommit
	SelCursorCopy
	SelCursorReset
	SelCursorValueLength
	SelCursorSetValueLength
	SelCursorValueRead
	SelCursorValueWrite
	SelCursorValueClear
	SelCursorNewValueInputStream
	SelCursorNewValueOutputStream
)

const (
	SelTxnLockMode uint32 = 3500 + iota
	SelTxnSetLockMode
	SelTxnLockTimeout
	SelTxnSetLockTimeout
	SelTxnDurabilityMode
	SelTxnSetDurabilityMode
	SelTxnCheck
	SelTxnIsBogus
	SelTxnCommit
	SelTxnCommitAll
	SelTxnEnter
	SelTxnExit
	SelTxnReset
	SelTxnResetWithCause
	SelTxnRollback
	SelTxnID
	SelTxnFlush
	SelTxnLockShared
	SelTxnTryLockShared
	SelTxnLockUpgradable
	SelTxnTryLockUpgradable
	SelTxnLockExclusive
	SelTxnTryLockExclusive
	SelTxnLockCheck
	SelTxnLastLockedIndex
	SelTxnLastLockedKey
	SelTxnWasAcquired
	SelTxnUnlock
	SelTxnUnlockToShared
	SelTxnUnlockCombine
)

const (
	SelSorterAdd uint32 = 4000 + iota
	SelSorterAddBatch
	SelSorterAddAll
	SelSorterFinish
	SelSorterFinishScan
	SelSorterProgress
	SelSorterReset
)

const (
	SelObserverIndexNodeVisited uint32 = 7000 + iota
	SelObserverIndexNodePassed
	SelObserverIndexNodeFailed
)

// SelLeaderAcquired/SelLeaderLost are pushed by the server, unprompted, on
// the same connection a client registered a LeaderNotifier over, addressed
// to the client's local correlation id the way observer events are.
const (
	SelLeaderAcquired uint32 = 7100 + iota
	SelLeaderLost
)

// SelObserverRelease disposes a remote observer proxy registered via
// SelDatabaseRegisterObserver, addressed directly at the proxy's own
// handle id.
const SelObserverRelease uint32 = 7200

const (
	SelSnapshotLength uint32 = 4500 + iota
	SelSnapshotPosition
	SelSnapshotIsCompressible
	SelSnapshotWriteTo
	SelSnapshotClose
)

const (
	SelTableDescriptor uint32 = 5000 + iota
	SelTableLoad
	SelTableExists
	SelTableStore
	SelTableExchange
	SelTableInsert
	SelTableReplace
	SelTableUpdate
	SelTableMerge
	SelTableDelete
	SelTableNewScanner
	SelTableNewUpdater
	SelTableDerive
	SelTableDeleteAll
	SelTableAnyRows
	SelTableQuery
)

const (
	SelQueryArgumentCount uint32 = 5500 + iota
	SelQueryPlan
)

const (
	SelScannerRow uint32 = 6000 + iota
	SelScannerStep
	SelScannerClose
)

const (
	SelUpdaterUpdate uint32 = 6500 + iota
	SelUpdaterDelete
)

const (
	SelAccessorValueLength uint32 = 7500 + iota
	SelAccessorSetValueLength
	SelAccessorValueRead
	SelAccessorValueWrite
	SelAccessorValueClear
)
